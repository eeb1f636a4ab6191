package app

import (
	"time"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/llm"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	LLM           llm.Config          `mapstructure:"llm"`
	Prompts       PromptsConfig       `mapstructure:"prompts"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// Host 监听地址
	Host string `mapstructure:"host"`

	// Port 监听端口
	Port int `mapstructure:"port"`

	// Mode 运行模式：debug, release, test
	Mode string `mapstructure:"mode"`
}

// PromptsConfig 自定义提示词模板，为空时使用内置模板
type PromptsConfig struct {
	Extract   string `mapstructure:"extract"`
	Transform string `mapstructure:"transform"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Enabled 是否记录执行历史
	Enabled bool `mapstructure:"enabled"`

	// Path 数据库文件路径
	Path string `mapstructure:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format 日志格式：text, json
	Format string `mapstructure:"format"`

	// Output 输出目标：stderr, stdout, file
	Output string `mapstructure:"output"`

	// FilePath 日志文件路径（当 Output 为 file 时生效）
	FilePath string `mapstructure:"file_path"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用
	Enabled bool `mapstructure:"enabled"`

	// Path 指标暴露路径
	Path string `mapstructure:"path"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		LLM: llm.DefaultConfig(),
		Database: DatabaseConfig{
			Enabled: false,
			Path:    "~/.promptchain/history.db",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: false,
				Path:    "/metrics",
			},
		},
	}
}

// ChainConfig 以 chain.DefaultConfig 为基础，叠加 LLM 配置
func (c *Config) ChainConfig() chain.Config {
	cfg := chain.DefaultConfig()
	cfg.Temperature = c.LLM.Temperature
	cfg.MaxTokens = c.LLM.MaxTokens
	if c.LLM.Timeout > 0 {
		cfg.Timeout = time.Duration(c.LLM.Timeout) * time.Second
	}
	return cfg
}

// Option 配置选项函数
type Option func(*Config)

// WithConfig 使用完整配置
func WithConfig(cfg *Config) Option {
	return func(c *Config) {
		if cfg != nil {
			*c = *cfg
		}
	}
}

// WithServerPort 设置服务器端口
func WithServerPort(port int) Option {
	return func(c *Config) {
		c.Server.Port = port
	}
}

// WithServerMode 设置运行模式
func WithServerMode(mode string) Option {
	return func(c *Config) {
		c.Server.Mode = mode
	}
}

// WithLLMConfig 设置 LLM 配置
func WithLLMConfig(cfg llm.Config) Option {
	return func(c *Config) {
		c.LLM = cfg
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.Log.Level = level
	}
}

// WithDatabasePath 启用执行历史并设置数据库路径
func WithDatabasePath(path string) Option {
	return func(c *Config) {
		c.Database.Enabled = true
		c.Database.Path = path
	}
}

// WithMetrics 启用 Prometheus 指标
func WithMetrics(path string) Option {
	return func(c *Config) {
		c.Observability.Metrics.Enabled = true
		if path != "" {
			c.Observability.Metrics.Path = path
		}
	}
}
