// Package raw 直接调用 OpenAI 兼容的 /chat/completions 接口
// 不依赖任何 SDK，通过提示词要求模型输出 JSON
package raw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/observability"
)

// Provider 直接 HTTP 调用的实现
type Provider struct {
	config     *Config
	httpClient *http.Client
}

// Config raw 后端配置
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		APIKey:  llm.NoAPIKey,
		BaseURL: llm.DefaultBaseURL,
		Model:   llm.DefaultModel,
		Timeout: llm.DefaultTimeout * time.Second,
	}
}

// NewProvider 创建 raw Provider
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = llm.DefaultBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = llm.NoAPIKey
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = llm.DefaultTimeout * time.Second
	}

	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// NewProviderFromLLMConfig 从通用 LLM 配置创建 Provider
func NewProviderFromLLMConfig(cfg llm.Config) *Provider {
	return NewProvider(&Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		MaxTokens: cfg.MaxTokens,
	})
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return llm.ProviderRaw
}

// ResolveModel 请求未指定模型时使用配置的模型
func (p *Provider) ResolveModel(requested string) string {
	if requested == "" {
		return p.config.Model
	}
	return requested
}

// Complete 发送补全请求
func (p *Provider) Complete(ctx context.Context, in llm.CompletionRequest) (string, error) {
	start := time.Now()

	model := p.ResolveModel(in.Model)
	maxTokens := in.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	baseURL := p.config.BaseURL
	if in.Endpoint != "" {
		baseURL = in.Endpoint
	}

	observability.LLMRequestLog(ctx, p.Name(), model, len(in.Prompt))

	temperature := in.Temperature
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: string(llm.RoleUser), Content: in.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", llm.WrapTransport(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.WrapTransport(ctx, p.Name(), fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return "", llm.ClassifyStatus(p.Name(), resp.StatusCode, errResp.Error.Message)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &llm.ModelError{Provider: p.Name(), Message: "failed to parse response: " + err.Error()}
	}

	if len(chatResp.Choices) == 0 {
		return "", &llm.ModelError{Provider: p.Name(), Message: llm.ErrEmptyResponse.Error()}
	}

	observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), chatResp.Usage.Map())

	return chatResp.Choices[0].Message.Content, nil
}

// API 请求/响应结构

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
