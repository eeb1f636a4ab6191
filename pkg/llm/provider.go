// Package llm 提供 LLM 适配层接口和实现
package llm

import (
	"context"
)

// Provider 文本补全能力
// 所有后端（raw HTTP、go-openai、genai）都需要实现此接口
type Provider interface {
	// Complete 发送一次补全请求，返回模型生成的文本
	// 失败时返回 *TransportError 或 *ModelError
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name 返回提供商名称
	Name() string
}

// SchemaCapable 支持原生结构化输出的 Provider 实现此接口
// 未实现或返回 false 时，调用方需要通过提示词要求模型输出 JSON
type SchemaCapable interface {
	SupportsSchema() bool
}

// SupportsSchema 判断 Provider 是否支持原生结构化输出
func SupportsSchema(p Provider) bool {
	sc, ok := p.(SchemaCapable)
	return ok && sc.SupportsSchema()
}

// ModelResolver 可选接口：报告请求实际使用的模型
type ModelResolver interface {
	ResolveModel(requested string) string
}

// ResolveModel 返回 Provider 处理 requested 时实际使用的模型
// 未实现 ModelResolver 的 Provider 原样返回 requested
func ResolveModel(p Provider, requested string) string {
	if r, ok := p.(ModelResolver); ok {
		return r.ResolveModel(requested)
	}
	return requested
}

// CompletionRequest 单次补全请求
type CompletionRequest struct {
	// Prompt 用户提示词
	Prompt string `json:"prompt"`

	// Model 模型名称，为空时使用 Provider 的默认模型
	Model string `json:"model,omitempty"`

	// Temperature 温度参数，0 表示贪婪解码
	Temperature float64 `json:"temperature"`

	// MaxTokens 最大 Token 数，0 表示不限制
	MaxTokens int `json:"max_tokens,omitempty"`

	// Endpoint 覆盖 Provider 的 base URL（可选）
	Endpoint string `json:"endpoint,omitempty"`

	// Schema 结构化输出约束，仅对 SchemaCapable 的 Provider 生效
	Schema *Schema `json:"-"`
}

// Role 消息角色
type Role string

// RoleUser 两个阶段的提示词都以 user 消息发送
const RoleUser Role = "user"

// Config LLM 通用配置
type Config struct {
	// Provider 后端类型：raw, openai, genai
	Provider string `mapstructure:"provider"`

	// APIKey API 密钥
	APIKey string `mapstructure:"api_key"`

	// BaseURL API 基础 URL（用于自定义 endpoint）
	BaseURL string `mapstructure:"base_url"`

	// Model 模型名称
	Model string `mapstructure:"model"`

	// Timeout 请求超时时间（秒）
	Timeout int `mapstructure:"timeout"`

	// MaxTokens 最大 Token 数
	MaxTokens int `mapstructure:"max_tokens"`

	// Temperature 温度参数（0-2）
	Temperature float64 `mapstructure:"temperature"`

	// StructuredOutput 是否使用后端原生的 JSON Schema 输出（openai 后端）
	StructuredOutput bool `mapstructure:"structured_output"`

	// RateLimit 每秒请求数上限，0 表示不限流
	RateLimit float64 `mapstructure:"rate_limit"`

	// Burst 限流突发量
	Burst int `mapstructure:"burst"`
}

// Usage Token 使用统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Map 转换为日志使用的 map
func (u Usage) Map() map[string]int {
	return map[string]int{
		"prompt":     u.PromptTokens,
		"completion": u.CompletionTokens,
		"total":      u.TotalTokens,
	}
}
