package app

import (
	"context"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/llm/genai"
	"github.com/KodaTao/PromptChain/pkg/llm/openai"
	"github.com/KodaTao/PromptChain/pkg/llm/raw"
	"github.com/KodaTao/PromptChain/pkg/observability"
)

// NewProvider 根据 cfg.Provider 创建对应的后端
// 密钥优先取配置（支持 ${ENV}），其次取常用环境变量；
// raw 和 openai 缺少密钥时使用占位值，便于连接本地服务
func NewProvider(ctx context.Context, cfg llm.Config) (llm.Provider, error) {
	name, err := llm.NormalizeProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	cfg.Provider = name

	cfg.WithAPIKey(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.WithAPIKey(llm.FallbackAPIKey(name))
	}
	if cfg.APIKey == "" && name != llm.ProviderGenAI {
		cfg.WithAPIKey(llm.NoAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.WithBaseURL(llm.DefaultBaseURL)
	}
	if cfg.Model == "" {
		cfg.WithModel(llm.DefaultModel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var provider llm.Provider
	switch name {
	case llm.ProviderOpenAI:
		provider = openai.NewProviderFromLLMConfig(cfg)
	case llm.ProviderGenAI:
		p, err := genai.NewProviderFromLLMConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		provider = raw.NewProviderFromLLMConfig(cfg)
	}

	observability.Info("LLM Provider initialized",
		"provider", provider.Name(),
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"api_key", llm.MaskAPIKey(cfg.APIKey),
		"structured_output", llm.SupportsSchema(provider),
	)

	return llm.NewRateLimited(provider, cfg.RateLimit, cfg.Burst), nil
}
