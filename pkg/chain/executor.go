// Package chain 实现两阶段提示词链：提取 → 转换 → 校验
//
// 第一阶段把自由文本提取为要点，第二阶段把要点转换为固定结构的 JSON，
// 最后由 specs.Validate 校验。两次 LLM 调用严格串行，执行器本身无共享可变状态，
// 可被多个 goroutine 同时调用。
package chain

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/observability"
	"github.com/KodaTao/PromptChain/pkg/prompt"
	"github.com/KodaTao/PromptChain/pkg/prompt/templates"
	"github.com/KodaTao/PromptChain/pkg/specs"
)

// Request 链路输入
type Request struct {
	Input string `json:"input"`
}

// Executor 链路执行器
type Executor struct {
	provider  llm.Provider
	extract   *prompt.Template
	transform *prompt.Template
	observers []StageObserver
	trace     io.Writer
}

// NewExecutor 创建执行器
func NewExecutor(provider llm.Provider, opts ...Option) *Executor {
	e := &Executor{
		provider:  provider,
		extract:   prompt.Extract,
		transform: prompt.Transform,
		trace:     os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider 返回执行器使用的 Provider
func (e *Executor) Provider() llm.Provider {
	return e.provider
}

// Run 执行一次完整的链路
// 任一阶段失败都会立即中止，并返回携带阶段名的 *ChainError；不做重试
func (e *Executor) Run(ctx context.Context, req Request, cfg Config) (specs.Record, error) {
	if strings.TrimSpace(req.Input) == "" {
		return specs.Record{}, &ChainError{Stage: StageExtract, Err: ErrEmptyInput}
	}
	if observability.RunID(ctx) == "" {
		ctx = observability.WithRunID(ctx, uuid.NewString())
	}

	start := time.Now()
	observability.InfoContext(ctx, "Chain started",
		"provider", e.provider.Name(),
		"model", cfg.Model,
		"structured_output", llm.SupportsSchema(e.provider),
	)

	// 1. 提取
	extractPrompt, err := e.extract.Render(req.Input)
	if err != nil {
		return specs.Record{}, &ChainError{Stage: StageExtract, Err: err}
	}
	intermediate, err := e.stage(ctx, StageExtract, cfg, func(ctx context.Context) (string, error) {
		return e.complete(ctx, cfg, extractPrompt, nil)
	})
	if err != nil {
		return specs.Record{}, err
	}

	// 2. 转换：支持原生结构化输出时直接传 Schema，否则在提示词中要求只输出 JSON
	transformPrompt, err := e.transform.Render(intermediate)
	if err != nil {
		return specs.Record{}, &ChainError{Stage: StageTransform, Err: err}
	}
	var schema *llm.Schema
	if llm.SupportsSchema(e.provider) {
		schema = specs.Schema()
	} else {
		transformPrompt += templates.JSONOnlyInstruction
	}
	output, err := e.stage(ctx, StageTransform, cfg, func(ctx context.Context) (string, error) {
		return e.complete(ctx, cfg, transformPrompt, schema)
	})
	if err != nil {
		return specs.Record{}, err
	}

	// 3. 校验
	var record specs.Record
	_, err = e.stage(ctx, StageValidate, cfg, func(context.Context) (string, error) {
		r, err := specs.Validate(output)
		if err != nil {
			return "", err
		}
		record = r
		return r.JSON(), nil
	})
	if err != nil {
		return specs.Record{}, err
	}

	observability.InfoContext(ctx, "Chain completed", "duration_ms", time.Since(start).Milliseconds())
	return record, nil
}

// stage 执行单个阶段，负责通知观察者、Verbose 输出和错误包装
func (e *Executor) stage(ctx context.Context, stage Stage, cfg Config, fn func(context.Context) (string, error)) (string, error) {
	var tr *tracer
	if cfg.Verbose {
		tr = &tracer{w: e.trace}
		tr.start(stage)
	}
	for _, o := range e.observers {
		o.OnStageStart(ctx, string(stage))
	}

	start := time.Now()
	out, err := fn(ctx)
	d := time.Since(start)

	for _, o := range e.observers {
		o.OnStageEnd(ctx, string(stage), d, err)
	}
	if tr != nil {
		tr.result(stage, out, err)
	}

	if err != nil {
		observability.StageLog(ctx, string(stage), "error", d.Milliseconds())
		observability.WarnContext(ctx, "Chain stage failed", "stage", stage, "error", err)
		return "", &ChainError{Stage: stage, Err: err}
	}
	observability.StageLog(ctx, string(stage), "success", d.Milliseconds())
	observability.DebugContext(ctx, "Chain stage output", "stage", stage, "output_chars", len(out))
	return out, nil
}

// complete 调用 Provider；cfg.Timeout 只约束本次调用
func (e *Executor) complete(ctx context.Context, cfg Config, text string, schema *llm.Schema) (string, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	return e.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      text,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Endpoint:    cfg.Endpoint,
		Schema:      schema,
	})
}
