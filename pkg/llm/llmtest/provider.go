// Package llmtest 提供测试用的 llm.Provider 实现
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/KodaTao/PromptChain/pkg/llm"
)

// Reply 一次预设的响应
type Reply struct {
	Text string
	Err  error
}

// Provider 按顺序返回预设响应，并记录收到的请求
// 可并发使用
type Provider struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.CompletionRequest
	schema   bool

	// Respond 设置后优先于预设响应，用于按请求内容生成回复
	Respond func(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// New 创建按顺序回复的 Provider
func New(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

// Texts 创建只返回文本的 Provider
func Texts(texts ...string) *Provider {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return New(replies...)
}

// WithSchema 让 Provider 声明支持原生结构化输出
func (p *Provider) WithSchema() *Provider {
	p.schema = true
	return p
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "mock"
}

// SupportsSchema 实现 llm.SchemaCapable
func (p *Provider) SupportsSchema() bool {
	return p.schema
}

// Complete 返回下一条预设响应
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	idx := len(p.requests) - 1
	respond := p.Respond
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", llm.WrapTransport(ctx, p.Name(), err)
	}
	if respond != nil {
		return respond(ctx, req)
	}
	if idx >= len(p.replies) {
		return "", fmt.Errorf("llmtest: unexpected call %d", idx+1)
	}
	r := p.replies[idx]
	return r.Text, r.Err
}

// Calls 返回调用次数
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests 返回收到的请求副本
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
