package main

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/KodaTao/PromptChain/pkg/app"
	"github.com/KodaTao/PromptChain/pkg/llm"
)

// loadConfig 加载配置文件
// 优先级：环境变量（PC_ 前缀）> 配置文件 > 默认值
func loadConfig(path string) (*app.Config, error) {
	v := viper.New()

	// 设置默认值
	defaults := app.DefaultConfig()

	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.mode", defaults.Server.Mode)

	v.SetDefault("llm.provider", defaults.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.timeout", defaults.LLM.Timeout)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("llm.temperature", defaults.LLM.Temperature)
	v.SetDefault("llm.structured_output", defaults.LLM.StructuredOutput)
	v.SetDefault("llm.rate_limit", defaults.LLM.RateLimit)
	v.SetDefault("llm.burst", defaults.LLM.Burst)

	v.SetDefault("prompts.extract", "")
	v.SetDefault("prompts.transform", "")

	v.SetDefault("database.enabled", defaults.Database.Enabled)
	v.SetDefault("database.path", defaults.Database.Path)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.output", defaults.Log.Output)
	v.SetDefault("log.file_path", "")

	v.SetDefault("observability.metrics.enabled", defaults.Observability.Metrics.Enabled)
	v.SetDefault("observability.metrics.path", defaults.Observability.Metrics.Path)

	// 配置文件
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.promptchain")
	}

	// 环境变量：PC_LLM_MODEL 对应 llm.model
	v.SetEnvPrefix("PC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件（如果存在）
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// 配置文件不存在时使用默认值
	}

	// 解析配置
	config := &app.Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if _, err := llm.NormalizeProvider(config.LLM.Provider); err != nil {
		return nil, err
	}

	return config, nil
}
