package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketImmediateWhenFunded(t *testing.T) {
	clk := newFakeClock()
	tb := NewTokenBucketWithClock(5, 1, clk.now, clk.sleep)
	ctx := context.Background()
	start := clk.now()

	for i := 0; i < 5; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if !clk.now().Equal(start) {
		t.Fatalf("funded bucket should not wait, clock moved by %s", clk.now().Sub(start))
	}
}

func TestTokenBucketWaitsForRefill(t *testing.T) {
	clk := newFakeClock()
	// 容量 2，每秒回填 1 个
	tb := NewTokenBucketWithClock(2, 1, clk.now, clk.sleep)
	ctx := context.Background()
	start := clk.now()

	_ = tb.Wait(ctx)
	_ = tb.Wait(ctx)

	// 桶空，第三次需要等 1 个令牌的回填时间
	if err := tb.Wait(ctx); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if got := clk.now().Sub(start); got < time.Second {
		t.Fatalf("third call resolved after %s, want >= 1s", got)
	}

	// 等待后的那次消费必须成功且令牌数不为负
	st := tb.Status()
	if st.Available < 0 {
		t.Fatalf("tokens went negative: %+v", st)
	}
}

func TestTokenBucketConsumeNNonNegative(t *testing.T) {
	clk := newFakeClock()
	tb := NewTokenBucketWithClock(10, 2, clk.now, clk.sleep)
	ctx := context.Background()

	if err := tb.Consume(ctx, 10); err != nil {
		t.Fatalf("consume full capacity: %v", err)
	}
	// 缺口 4 个、速率 2/s，应等待 2s
	start := clk.now()
	if err := tb.Consume(ctx, 4); err != nil {
		t.Fatalf("consume beyond balance: %v", err)
	}
	if got := clk.now().Sub(start); got < 2*time.Second {
		t.Fatalf("waited %s, want >= 2s", got)
	}
	if st := tb.Status(); st.Available < 0 {
		t.Fatalf("tokens negative after refill-consume: %+v", st)
	}
}

func TestTokenBucketAllowIsNonMutating(t *testing.T) {
	clk := newFakeClock()
	tb := NewTokenBucketWithClock(1, 1, clk.now, clk.sleep)
	ctx := context.Background()

	if !tb.Allow() || !tb.Allow() {
		t.Fatalf("probe should not consume tokens")
	}
	_ = tb.Wait(ctx)
	if tb.Allow() {
		t.Fatalf("empty bucket should probe false")
	}
}

func TestTokenBucketReset(t *testing.T) {
	clk := newFakeClock()
	tb := NewTokenBucketWithClock(3, 1, clk.now, clk.sleep)
	ctx := context.Background()

	_ = tb.Consume(ctx, 3)
	if tb.Allow() {
		t.Fatalf("bucket should be empty")
	}
	tb.Reset()
	st := tb.Status()
	if st.Available != 3 || st.Current != 0 {
		t.Fatalf("status after reset = %+v", st)
	}
}
