package ratelimit

import (
	"context"
	"math"
	"time"
)

// TokenBucket 令牌桶限流：容量 capacity，按 refillRate（令牌/秒）连续回填。
// 令牌不足时先等待 (n - tokens) / rate，回填保证等待后一次重试必然成功。
type TokenBucket struct {
	mu         chanMutex
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time

	now   func() time.Time
	sleep sleepFunc
}

func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	tb := &TokenBucket{
		mu:         newChanMutex(),
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	tb.lastRefill = tb.now()
	return tb
}

// NewTokenBucketWithClock 供测试注入时钟与等待原语
func NewTokenBucketWithClock(capacity, refillRate float64, now func() time.Time, sleep sleepFunc) *TokenBucket {
	tb := NewTokenBucket(capacity, refillRate)
	tb.now = now
	tb.lastRefill = now()
	tb.sleep = sleep
	return tb
}

// refill 按逝去时间回填令牌，封顶 capacity；调用方需持锁
func (t *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(t.lastRefill).Seconds()
	if elapsed > 0 {
		t.tokens = math.Min(t.capacity, t.tokens+elapsed*t.refillRate)
		t.lastRefill = now
	}
}

// Consume 取走 n 个令牌，不足时等待一次后重试。
// 两段式而非无界循环：回填速率是常量，等待时长按缺口精确计算。
func (t *TokenBucket) Consume(ctx context.Context, n float64) error {
	t.mu.lock()
	now := t.now()
	t.refill(now)

	if t.tokens >= n {
		t.tokens -= n
		t.mu.unlock()
		return nil
	}

	wait := time.Duration((n - t.tokens) / t.refillRate * float64(time.Second))
	t.mu.unlock()

	if err := t.sleep(ctx, wait); err != nil {
		return err
	}

	t.mu.lock()
	defer t.mu.unlock()
	t.refill(t.now())
	t.tokens -= n
	// 并发竞争下可能被别人抢先取走，令牌数不允许为负
	if t.tokens < 0 {
		t.tokens = 0
	}
	return nil
}

func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.Consume(ctx, 1)
}

func (t *TokenBucket) Allow() bool {
	t.mu.lock()
	defer t.mu.unlock()

	// 探测不落盘：按当前时刻推算回填后的令牌数，不更新 lastRefill
	elapsed := t.now().Sub(t.lastRefill).Seconds()
	tokens := math.Min(t.capacity, t.tokens+elapsed*t.refillRate)
	return tokens >= 1
}

func (t *TokenBucket) Reset() {
	t.mu.lock()
	defer t.mu.unlock()
	t.tokens = t.capacity
	t.lastRefill = t.now()
}

func (t *TokenBucket) Status() Status {
	t.mu.lock()
	defer t.mu.unlock()

	now := t.now()
	t.refill(now)

	st := Status{
		Current:   int(t.capacity - t.tokens),
		Max:       int(t.capacity),
		Available: int(t.tokens),
		ResetAt:   now,
	}
	if t.tokens < t.capacity && t.refillRate > 0 {
		full := time.Duration((t.capacity - t.tokens) / t.refillRate * float64(time.Second))
		st.ResetAt = now.Add(full)
	}
	return st
}
