package chain

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// StageObserver 阶段事件观察者
// stage 使用字符串，便于 observability 等包实现而无需依赖本包
type StageObserver interface {
	OnStageStart(ctx context.Context, stage string)
	OnStageEnd(ctx context.Context, stage string, d time.Duration, err error)
}

// tracer Verbose 模式下输出每个阶段的开始和结果
type tracer struct {
	w io.Writer
}

var stageMessages = map[Stage]string{
	StageExtract:   "Extracting technical specifications...",
	StageTransform: "Transforming to structured JSON...",
	StageValidate:  "Validating against schema...",
}

func (t tracer) start(stage Stage) {
	fmt.Fprintf(t.w, "[%s] %s\n", stage, stageMessages[stage])
}

func (t tracer) result(stage Stage, output string, err error) {
	if err != nil {
		fmt.Fprintf(t.w, "[%s] Failed: %v\n\n", stage, err)
		return
	}
	fmt.Fprintf(t.w, "[%s] Result:\n%s\n\n", stage, strings.TrimRight(output, "\n"))
}
