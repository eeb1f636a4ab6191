package chain

import (
	"io"
	"time"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/prompt"
)

// Config 单次链路执行的配置
type Config struct {
	// Model 模型名称，为空时使用 Provider 配置的模型
	Model string `mapstructure:"model" json:"model,omitempty"`

	// Temperature 温度参数，默认 0（贪婪解码）
	Temperature float64 `mapstructure:"temperature" json:"temperature"`

	// Verbose 输出每个阶段的追踪信息
	Verbose bool `mapstructure:"verbose" json:"verbose"`

	// Endpoint 覆盖 Provider 的 base URL（可选）
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty"`

	// Timeout 单次 LLM 调用超时，0 表示只受调用方 ctx 约束
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`

	// MaxTokens 最大 Token 数，0 表示使用 Provider 默认值
	MaxTokens int `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
}

// DefaultConfig 返回默认配置
// Model 留空，由 Provider 使用自身配置的模型
func DefaultConfig() Config {
	return Config{
		Temperature: 0,
		Timeout:     llm.DefaultTimeout * time.Second,
	}
}

// Option 执行器选项
type Option func(*Executor)

// WithExtractTemplate 替换第一阶段模板
func WithExtractTemplate(t *prompt.Template) Option {
	return func(e *Executor) {
		if t != nil {
			e.extract = t
		}
	}
}

// WithTransformTemplate 替换第二阶段模板
func WithTransformTemplate(t *prompt.Template) Option {
	return func(e *Executor) {
		if t != nil {
			e.transform = t
		}
	}
}

// WithObserver 添加阶段观察者
func WithObserver(o StageObserver) Option {
	return func(e *Executor) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithTraceWriter 设置 Verbose 模式的输出目标（默认 os.Stderr）
func WithTraceWriter(w io.Writer) Option {
	return func(e *Executor) {
		if w != nil {
			e.trace = w
		}
	}
}
