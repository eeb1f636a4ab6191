package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited 在调用前按令牌桶限流的 Provider 装饰器
// 只做节流，不做重试
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited 创建限流装饰器
// rps <= 0 时直接返回原 Provider
func NewRateLimited(next Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Complete 等待令牌后转发请求；ctx 取消时返回 TransportError
func (r *RateLimited) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", WrapTransport(ctx, r.next.Name(), err)
	}
	return r.next.Complete(ctx, req)
}

// Name 返回被装饰的 Provider 名称
func (r *RateLimited) Name() string {
	return r.next.Name()
}

// ResolveModel 透传底层 Provider 的模型解析
func (r *RateLimited) ResolveModel(requested string) string {
	return ResolveModel(r.next, requested)
}

// SupportsSchema 透传底层 Provider 的结构化输出能力
func (r *RateLimited) SupportsSchema() bool {
	return SupportsSchema(r.next)
}
