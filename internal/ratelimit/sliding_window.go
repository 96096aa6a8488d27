package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow 滑动窗口限流：记录窗口内已接受请求的时间戳，
// 满额时等待最老一条滑出窗口后重试。等待是迭代而非递归的，
// 每次醒来窗口内剩余请求严格减少，循环必然有界。
type SlidingWindow struct {
	mu     chanMutex
	max    int
	window time.Duration
	stamps []time.Time

	now   func() time.Time
	sleep sleepFunc
}

// chanMutex 用带缓冲 channel 实现的锁，便于在持锁间隙插入可取消等待
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) lock()   { <-m }
func (m chanMutex) unlock() { m <- struct{}{} }

func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		mu:     newChanMutex(),
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// NewSlidingWindowWithClock 供测试注入时钟与等待原语
func NewSlidingWindowWithClock(max int, window time.Duration, now func() time.Time, sleep sleepFunc) *SlidingWindow {
	sw := NewSlidingWindow(max, window)
	sw.now = now
	sw.sleep = sleep
	return sw
}

// prune 丢弃窗口之外的时间戳；调用方需持锁
func (s *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}

func (s *SlidingWindow) Wait(ctx context.Context) error {
	for {
		s.mu.lock()
		now := s.now()
		s.prune(now)

		if len(s.stamps) < s.max {
			s.stamps = append(s.stamps, now)
			s.mu.unlock()
			return nil
		}

		// 等到最老的一条滑出窗口
		wait := s.window - now.Sub(s.stamps[0])
		s.mu.unlock()

		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *SlidingWindow) Allow() bool {
	s.mu.lock()
	defer s.mu.unlock()

	// 探测不修改已记录的时间戳，只按当前时刻数窗口内条数
	now := s.now()
	cutoff := now.Add(-s.window)
	count := 0
	for _, ts := range s.stamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count < s.max
}

func (s *SlidingWindow) Reset() {
	s.mu.lock()
	defer s.mu.unlock()
	s.stamps = s.stamps[:0]
}

func (s *SlidingWindow) Status() Status {
	s.mu.lock()
	defer s.mu.unlock()

	now := s.now()
	s.prune(now)

	st := Status{
		Current:   len(s.stamps),
		Max:       s.max,
		Available: s.max - len(s.stamps),
		ResetAt:   now,
	}
	if len(s.stamps) > 0 {
		st.ResetAt = s.stamps[0].Add(s.window)
	}
	return st
}
