package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 是单个数据源的请求节流器。容量不足永远通过等待解决，
// 不会拒绝调用方；只有 ctx 取消/超时会让 Wait 提前返回。
type Limiter interface {
	// Wait 阻塞直到拿到一个请求名额
	Wait(ctx context.Context) error
	// Allow 无副作用地探测当前是否还有名额
	Allow() bool
	// Reset 清空全部状态
	Reset()
	// Status 返回当前用量快照
	Status() Status
}

// Status 限流器用量快照
type Status struct {
	Current   int       `json:"currentRequests"`
	Max       int       `json:"maxRequests"`
	Available int       `json:"availableRequests"`
	ResetAt   time.Time `json:"resetTime"`
}

// sleepFunc 可注入的等待原语，测试里替换为假睡眠
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Registry 按数据源名字持有各自独立的限流器实例。
// 显式传引用而不是包级单例，测试可以构造互相隔离的注册表。
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]Limiter)}
}

func (r *Registry) Register(name string, l Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[name] = l
}

func (r *Registry) Get(name string) (Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.limiters[name]
	return l, ok
}

// Reset 清空所有限流器状态
func (r *Registry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.limiters {
		l.Reset()
	}
}

// StatusAll 返回全部限流器的用量快照，供管理接口展示
func (r *Registry) StatusAll() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Status, len(r.limiters))
	for name, l := range r.limiters {
		out[name] = l.Status()
	}
	return out
}
