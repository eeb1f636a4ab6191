// Package genai 基于 Google GenAI SDK 的 Provider 实现
// 通过 ResponseSchema 使用 Gemini 的原生结构化输出
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/observability"
)

// DefaultModel genai 后端的默认模型
const DefaultModel = "gemini-2.0-flash"

// Provider GenAI 实现
type Provider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// Config genai 后端配置
type Config struct {
	APIKey    string
	BaseURL   string // 为空时使用 SDK 默认地址
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// NewProvider 创建 GenAI Provider
func NewProvider(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, llm.ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = llm.DefaultTimeout * time.Second
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Provider{
		client:    client,
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// NewProviderFromLLMConfig 从通用 LLM 配置创建 Provider
// llm.DefaultModel 是 OpenAI 兼容服务的模型名，这里替换为 genai 默认模型
func NewProviderFromLLMConfig(ctx context.Context, cfg llm.Config) (*Provider, error) {
	model := cfg.Model
	if model == llm.DefaultModel {
		model = DefaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == llm.DefaultBaseURL {
		baseURL = ""
	}
	return NewProvider(ctx, &Config{
		APIKey:    cfg.APIKey,
		BaseURL:   baseURL,
		Model:     model,
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		MaxTokens: cfg.MaxTokens,
	})
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return llm.ProviderGenAI
}

// SupportsSchema GenAI 始终支持原生结构化输出
func (p *Provider) SupportsSchema() bool {
	return true
}

// ResolveModel 空模型或 OpenAI 兼容服务的默认模型都替换为配置的 Gemini 模型
func (p *Provider) ResolveModel(requested string) string {
	if requested == "" || requested == llm.DefaultModel {
		return p.model
	}
	return requested
}

// Complete 发送补全请求
func (p *Provider) Complete(ctx context.Context, in llm.CompletionRequest) (string, error) {
	start := time.Now()

	model := p.ResolveModel(in.Model)

	observability.LLMRequestLog(ctx, p.Name(), model, len(in.Prompt))

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(in.Temperature)),
	}
	maxTokens := in.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if in.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenAISchema(in.Schema)
	}
	if in.Endpoint != "" {
		config.HTTPOptions = &genai.HTTPOptions{BaseURL: in.Endpoint}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromText(in.Prompt, genai.RoleUser),
	}, config)
	if err != nil {
		return "", p.classify(ctx, err)
	}

	text := resp.Text()
	if text == "" {
		return "", &llm.ModelError{Provider: p.Name(), Message: llm.ErrEmptyResponse.Error()}
	}

	usage := map[string]int{}
	if resp.UsageMetadata != nil {
		usage["prompt"] = int(resp.UsageMetadata.PromptTokenCount)
		usage["completion"] = int(resp.UsageMetadata.CandidatesTokenCount)
		usage["total"] = int(resp.UsageMetadata.TotalTokenCount)
	}
	observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage)

	return text, nil
}

// classify 把 SDK 错误映射为 TransportError / ModelError
func (p *Provider) classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(p.Name(), apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.ClassifyStatus(p.Name(), apiErrPtr.Code, apiErrPtr.Message)
	}
	return llm.WrapTransport(ctx, p.Name(), err)
}

// toGenAISchema 把通用 Schema 转换为 genai.Schema
func toGenAISchema(s *llm.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        genai.TypeObject,
		Description: s.Description,
		Properties:  make(map[string]*genai.Schema, len(s.Properties)),
		Required:    s.Required(),
	}
	for _, prop := range s.Properties {
		out.Properties[prop.Name] = &genai.Schema{
			Type:        genaiType(prop.Type),
			Description: prop.Description,
		}
		out.PropertyOrdering = append(out.PropertyOrdering, prop.Name)
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}
