// Package history 记录链路执行结果
// 只在应用层使用，链路核心本身不持久化任何状态；中间结果不会被记录
package history

import (
	"gorm.io/gorm"
)

// RunStatus 执行状态
type RunStatus string

const (
	StatusOK     RunStatus = "ok"
	StatusFailed RunStatus = "failed"
)

// Run 一次链路执行记录
type Run struct {
	gorm.Model
	RunID      string    `gorm:"uniqueIndex;not null" json:"run_id"`
	Approach   string    `gorm:"index;not null" json:"approach"`
	Model      string    `json:"model"`
	Input      string    `gorm:"type:text;not null" json:"input"`
	Output     string    `gorm:"type:text" json:"output,omitempty"` // 校验后的 JSON
	Status     RunStatus `gorm:"index;not null" json:"status"`
	Stage      string    `json:"stage,omitempty"`      // 失败阶段
	ErrorKind  string    `json:"error_kind,omitempty"` // transport, model, validation ...
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// TableName 指定表名
func (Run) TableName() string {
	return "chain_runs"
}

// Succeeded 是否成功
func (r *Run) Succeeded() bool {
	return r.Status == StatusOK
}
