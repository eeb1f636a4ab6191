// Package llm 提供 LLM 适配层接口和实现
package llm

import (
	"fmt"
	"os"
	"strings"
)

// 默认值：本地 LlamaStack 服务（OpenAI 兼容接口）
const (
	DefaultBaseURL = "http://localhost:8321/v1"
	DefaultModel   = "openai/gpt-4o-mini"
	DefaultTimeout = 60

	// NoAPIKey 本地 OpenAI 兼容服务不校验密钥时使用的占位值
	NoAPIKey = "none"
)

// 支持的后端类型
const (
	ProviderRaw    = "raw"
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
)

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Provider:         ProviderRaw,
		BaseURL:          DefaultBaseURL,
		Model:            DefaultModel,
		Timeout:          DefaultTimeout,
		Temperature:      0,
		StructuredOutput: true,
		Burst:            1,
	}
}

// ResolveAPIKey 解析 API Key（支持环境变量引用）
// 如果值以 ${} 包裹，则从环境变量读取
func ResolveAPIKey(key string) string {
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		envName := key[2 : len(key)-1]
		return os.Getenv(envName)
	}
	return key
}

// FallbackAPIKey 按后端类型从常用环境变量中取密钥
func FallbackAPIKey(provider string) string {
	switch provider {
	case ProviderGenAI:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// MaskAPIKey 脱敏 API Key，用于日志输出
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// NormalizeProvider 把别名映射为标准后端名称
// framework-a/langchain 对应 openai，framework-b/adk 对应 genai
func NormalizeProvider(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderRaw:
		return ProviderRaw, nil
	case ProviderOpenAI, "framework-a", "langchain":
		return ProviderOpenAI, nil
	case ProviderGenAI, "framework-b", "adk", "gemini":
		return ProviderGenAI, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownApproach, name)
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if _, err := NormalizeProvider(c.Provider); err != nil {
		return err
	}
	if c.Provider == ProviderGenAI && c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Model == "" {
		return ErrMissingModel
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return ErrInvalidTemperature
	}
	return nil
}

// WithAPIKey 设置 API Key
func (c *Config) WithAPIKey(key string) *Config {
	c.APIKey = ResolveAPIKey(key)
	return c
}

// WithBaseURL 设置 Base URL
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithModel 设置模型
func (c *Config) WithModel(model string) *Config {
	c.Model = model
	return c
}

// 配置相关错误
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

var (
	ErrMissingAPIKey      = &ConfigError{Message: "API key is required"}
	ErrMissingModel       = &ConfigError{Message: "model is required"}
	ErrInvalidTemperature = &ConfigError{Message: "temperature must be between 0 and 2"}
	ErrUnknownApproach    = &ConfigError{Message: "unknown approach"}
)
