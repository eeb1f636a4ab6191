package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransportError 网络、鉴权或服务不可用导致的失败
// 重试可能恢复（本项目不做重试）
type TransportError struct {
	Provider   string
	StatusCode int // 0 表示请求未得到 HTTP 响应
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ModelError 后端拒绝了请求（无效模型、内容策略等）
// 不修改请求无法恢复
type ModelError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: model error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: model error: %s", e.Provider, e.Message)
}

// ErrEmptyResponse 后端返回了空结果
var ErrEmptyResponse = errors.New("no choices in response")

// ClassifyStatus 根据 HTTP 状态码把后端失败归类为 TransportError 或 ModelError
// 401/403/408/429 和 5xx 属于传输层，其余 4xx 视为模型拒绝请求
func ClassifyStatus(provider string, status int, message string) error {
	switch {
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		if message == "" {
			message = http.StatusText(status)
		}
		return &TransportError{Provider: provider, StatusCode: status, Err: errors.New(message)}
	default:
		if message == "" {
			message = http.StatusText(status)
		}
		return &ModelError{Provider: provider, StatusCode: status, Message: message}
	}
}

// WrapTransport 把未得到 HTTP 响应的错误包装为 TransportError
// ctx 已取消时保留 ctx.Err()，便于调用方使用 errors.Is 判断
func WrapTransport(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &TransportError{Provider: provider, Err: err}
}
