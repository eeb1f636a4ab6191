package history

import (
	"context"
	"time"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/observability"
	"github.com/KodaTao/PromptChain/pkg/specs"
)

// Entry 待记录的执行结果
type Entry struct {
	Approach string
	Model    string
	Input    string
	Record   specs.Record
	Err      error
	Duration time.Duration
}

// Recorder 把链路结果写入数据库
type Recorder struct {
	repo *Repository
}

// NewRecorder 创建 Recorder
func NewRecorder(repo *Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Repository 返回底层 Repository
func (r *Recorder) Repository() *Repository {
	return r.repo
}

// Record 保存一次执行结果；run ID 取自 ctx
// 写入失败只记录日志，不影响链路结果
func (r *Recorder) Record(ctx context.Context, e Entry) *Run {
	run := &Run{
		RunID:      observability.RunID(ctx),
		Approach:   e.Approach,
		Model:      e.Model,
		Input:      e.Input,
		DurationMs: e.Duration.Milliseconds(),
	}
	if e.Err != nil {
		run.Status = StatusFailed
		run.Stage = string(chain.StageOf(e.Err))
		run.ErrorKind = string(chain.Kind(e.Err))
		run.Error = e.Err.Error()
	} else {
		run.Status = StatusOK
		run.Output = e.Record.JSON()
	}

	if err := r.repo.Create(run); err != nil {
		observability.ErrorContext(ctx, "Failed to record chain run", "error", err)
		return nil
	}
	return run
}
