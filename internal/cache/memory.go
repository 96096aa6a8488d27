package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory 是进程内的 TTL 缓存：过期采用惰性淘汰，Get 越过 expiresAt
// 即视为未命中并顺手清除。Redis 不可用时作为降级实现，也用于测试。
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// 时钟可注入，测试里用模拟时钟验证 TTL 语义
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryWithClock 供测试注入时钟
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
}

// Delete 支持精确 key 或以 * 结尾的前缀模式。
// 缓存 key 约定（见 cache.go）只需要前缀失效，不实现完整 glob。
func (m *Memory) Delete(_ context.Context, pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !strings.HasSuffix(pattern, "*") {
		if _, ok := m.entries[pattern]; ok {
			delete(m.entries, pattern)
			return 1
		}
		return 0
	}

	prefix := strings.TrimSuffix(pattern, "*")
	removed := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Sweep 清理所有已过期条目，返回清理条数。惰性淘汰已保证正确性，
// 这里只是给长生命周期进程提供内存回收入口（可挂在 cron 上）。
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len 当前条目数（含未被惰性淘汰的过期条目），仅用于观测
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
