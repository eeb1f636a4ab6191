package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/specs"
)

// Stage 链路阶段
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageValidate  Stage = "validate"
)

// ChainError 记录失败发生在哪个阶段
type ChainError struct {
	Stage Stage
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain failed at stage %s: %v", e.Stage, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// ErrEmptyInput 输入为空
var ErrEmptyInput = errors.New("input is empty")

// ErrorKind 错误分类，用于 CLI 和 HTTP 输出
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindModel      ErrorKind = "model"
	KindValidation ErrorKind = "validation"
	KindTimeout    ErrorKind = "timeout"
	KindConfig     ErrorKind = "config"
	KindInput      ErrorKind = "input"
	KindInternal   ErrorKind = "internal"
)

// Kind 对错误进行分类
func Kind(err error) ErrorKind {
	var (
		transportErr  *llm.TransportError
		modelErr      *llm.ModelError
		validationErr *specs.ValidationError
		configErr     *llm.ConfigError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &modelErr):
		return KindModel
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &configErr):
		return KindConfig
	case errors.Is(err, ErrEmptyInput):
		return KindInput
	default:
		return KindInternal
	}
}

// StageOf 返回失败阶段，非 ChainError 返回空字符串
func StageOf(err error) Stage {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Stage
	}
	return ""
}
