// Package openai 基于 go-openai SDK 的 Provider 实现
// 支持 response_format=json_schema 的原生结构化输出
package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/observability"
)

// Provider go-openai 实现
type Provider struct {
	config     *Config
	api        *openai.Client
	httpClient *http.Client
}

// Config openai 后端配置
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Timeout          time.Duration
	MaxTokens        int
	StructuredOutput bool
}

// NewProvider 创建 Provider
// BaseURL 为空时使用 LlamaStack 的默认地址
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = llm.NoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = llm.DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = llm.DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = llm.DefaultTimeout * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Provider{
		config:     cfg,
		api:        newAPIClient(cfg.APIKey, cfg.BaseURL, httpClient),
		httpClient: httpClient,
	}
}

// NewProviderFromLLMConfig 从通用 LLM 配置创建 Provider
func NewProviderFromLLMConfig(cfg llm.Config) *Provider {
	return NewProvider(&Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		Model:            cfg.Model,
		Timeout:          time.Duration(cfg.Timeout) * time.Second,
		MaxTokens:        cfg.MaxTokens,
		StructuredOutput: cfg.StructuredOutput,
	})
}

func newAPIClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	clientCfg.HTTPClient = httpClient
	return openai.NewClientWithConfig(clientCfg)
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return llm.ProviderOpenAI
}

// SupportsSchema 是否发送 json_schema response_format
func (p *Provider) SupportsSchema() bool {
	return p.config.StructuredOutput
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

	observability.LLMRequestLog(ctx, p.Name(), model, len(in.Prompt))

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: in.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature(in.Temperature),
	}
	if in.Schema != nil && p.SupportsSchema() {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        in.Schema.Name,
				Description: in.Schema.Description,
				Schema:      in.Schema,
				Strict:      true,
			},
		}
	}

	api := p.api
	if in.Endpoint != "" {
		api = newAPIClient(p.config.APIKey, in.Endpoint, p.httpClient)
	}

	resp, err := api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", &llm.ModelError{Provider: p.Name(), Message: llm.ErrEmptyResponse.Error()}
	}

	observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), map[string]int{
		"prompt":     resp.Usage.PromptTokens,
		"completion": resp.Usage.CompletionTokens,
		"total":      resp.Usage.TotalTokens,
	})

	return resp.Choices[0].Message.Content, nil
}

// classify 把 SDK 错误映射为 TransportError / ModelError
func (p *Provider) classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(p.Name(), apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.ClassifyStatus(p.Name(), reqErr.HTTPStatusCode, reqErr.Error())
	}
	return llm.WrapTransport(ctx, p.Name(), err)
}

// temperature SDK 的 Temperature 字段带 omitempty，0 会被省略
// 用最小正数代替，保证贪婪解码
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
