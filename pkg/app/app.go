// Package app 组装 PromptChain 应用：配置、Provider、执行器、历史记录和指标
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/history"
	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/observability"
	"github.com/KodaTao/PromptChain/pkg/prompt"
	"github.com/KodaTao/PromptChain/pkg/specs"
	"github.com/KodaTao/PromptChain/pkg/storage"
)

// App PromptChain 应用实例
type App struct {
	config    *Config
	extract   *prompt.Template
	transform *prompt.Template
	metrics   *observability.Metrics
	db        *gorm.DB
	recorder  *history.Recorder

	mu        sync.Mutex
	executors map[string]*chain.Executor // 按后端名称缓存
}

// New 创建新的 App 实例
func New(opts ...Option) *App {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &App{
		config:    config,
		extract:   prompt.Extract,
		transform: prompt.Transform,
		executors: make(map[string]*chain.Executor),
	}
}

// Initialize 初始化应用
// 包括：日志、提示词模板、数据库、指标；Provider 在首次使用时创建
func (a *App) Initialize() error {
	// 1. 初始化日志
	if err := observability.InitLogger(observability.LogConfig{
		Level:    a.config.Log.Level,
		Format:   a.config.Log.Format,
		Output:   a.config.Log.Output,
		FilePath: a.config.Log.FilePath,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	observability.Info("Initializing PromptChain",
		"llm_provider", a.config.LLM.Provider,
		"llm_model", a.config.LLM.Model,
		"history", a.config.Database.Enabled,
		"metrics", a.config.Observability.Metrics.Enabled,
	)

	// 2. 自定义提示词模板
	if err := a.loadTemplates(); err != nil {
		return err
	}

	// 3. 执行历史（可选）
	if a.config.Database.Enabled {
		db, err := storage.Open(storage.Config{Path: a.config.Database.Path})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		repo, err := history.NewRepository(db)
		if err != nil {
			_ = storage.Close(db)
			return fmt.Errorf("failed to migrate history: %w", err)
		}
		a.db = db
		a.recorder = history.NewRecorder(repo)
	}

	// 4. 指标（可选）
	if a.config.Observability.Metrics.Enabled {
		a.metrics = observability.NewMetrics()
	}

	observability.Info("PromptChain initialized")
	return nil
}

// loadTemplates 解析配置中的模板，模板必须恰好包含一个占位符
func (a *App) loadTemplates() error {
	if text := a.config.Prompts.Extract; text != "" {
		t, err := prompt.New("extract", text)
		if err != nil {
			return fmt.Errorf("invalid extract prompt: %w", err)
		}
		a.extract = t
	}
	if text := a.config.Prompts.Transform; text != "" {
		t, err := prompt.New("transform", text)
		if err != nil {
			return fmt.Errorf("invalid transform prompt: %w", err)
		}
		a.transform = t
	}
	return nil
}

// UseProvider 为指定后端注册一个已创建的 Provider
func (a *App) UseProvider(approach string, provider llm.Provider) error {
	name, err := llm.NormalizeProvider(approach)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executors[name] = a.newExecutor(provider)
	return nil
}

// Executor 获取指定后端的执行器，approach 为空时使用配置中的后端
func (a *App) Executor(ctx context.Context, approach string) (*chain.Executor, error) {
	if approach == "" {
		approach = a.config.LLM.Provider
	}
	name, err := llm.NormalizeProvider(approach)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if exec, ok := a.executors[name]; ok {
		return exec, nil
	}

	cfg := a.config.LLM
	cfg.Provider = name
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	exec := a.newExecutor(provider)
	a.executors[name] = exec
	return exec, nil
}

func (a *App) newExecutor(provider llm.Provider) *chain.Executor {
	opts := []chain.Option{
		chain.WithExtractTemplate(a.extract),
		chain.WithTransformTemplate(a.transform),
	}
	if a.metrics != nil {
		opts = append(opts, chain.WithObserver(a.metrics))
	}
	return chain.NewExecutor(provider, opts...)
}

// Run 执行一次链路，并记录指标和历史
func (a *App) Run(ctx context.Context, approach, input string, cfg chain.Config) (specs.Record, error) {
	exec, err := a.Executor(ctx, approach)
	if err != nil {
		return specs.Record{}, err
	}
	name := exec.Provider().Name()

	if observability.RunID(ctx) == "" {
		ctx = observability.WithRunID(ctx, uuid.NewString())
	}

	start := time.Now()
	record, err := exec.Run(ctx, chain.Request{Input: input}, cfg)

	if a.metrics != nil {
		a.metrics.ObserveRun(name, err)
	}
	if a.recorder != nil {
		model := llm.ResolveModel(exec.Provider(), cfg.Model)
		if model == "" {
			model = a.config.LLM.Model
		}
		a.recorder.Record(ctx, history.Entry{
			Approach: name,
			Model:    model,
			Input:    input,
			Record:   record,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return record, err
}

// Chat 发送一条无状态的对话消息，返回模型的原始回复
func (a *App) Chat(ctx context.Context, approach, message string, cfg chain.Config) (string, error) {
	exec, err := a.Executor(ctx, approach)
	if err != nil {
		return "", err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	return exec.Provider().Complete(ctx, llm.CompletionRequest{
		Prompt:      message,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Endpoint:    cfg.Endpoint,
	})
}

// GetConfig 获取配置
func (a *App) GetConfig() *Config {
	return a.config
}

// Metrics 获取指标实例，未启用时返回 nil
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// History 获取历史记录仓库，未启用时返回 nil
func (a *App) History() *history.Repository {
	if a.recorder == nil {
		return nil
	}
	return a.recorder.Repository()
}

// Shutdown 关闭应用
func (a *App) Shutdown() error {
	observability.Info("Shutting down PromptChain")

	if err := storage.Close(a.db); err != nil {
		observability.Error("Failed to close database", "error", err)
		return err
	}
	a.db = nil
	a.recorder = nil

	observability.Info("PromptChain shutdown complete")
	return nil
}
