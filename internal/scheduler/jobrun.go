package scheduler

import (
	"sync"
	"time"

	"github.com/LJTian/InspireHub/internal/scraper"
)

// JobRun 的终态
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	// StatusSkipped 触发被最小间隔或在途任务拦下，未发生状态迁移
	StatusSkipped = "skipped"
)

// 分类级结果
const (
	CategorySuccess = "success"
	CategoryFailed  = "failed"
	CategoryNotRun  = "not-run"
)

// CategoryResult 一个分类在本轮任务中的结果
type CategoryResult struct {
	Category  string                          `json:"category"`
	Status    string                          `json:"status"`
	Saved     int                             `json:"saved"`
	Dropped   int                             `json:"dropped"`
	PerSource map[string]scraper.SourceStatus `json:"perSource,omitempty"`
	Error     string                          `json:"error,omitempty"`
}

// JobRun 一次完整的 采集 -> 去重 -> 排行 -> 缓存刷新 执行记录。
// 只保留最近一轮，不做持久化历史。
type JobRun struct {
	JobID      string           `json:"jobId"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Status     string           `json:"status"`
	Skipped    bool             `json:"skipped"`
	SkipReason string           `json:"skipReason,omitempty"`
	Categories []CategoryResult `json:"categories,omitempty"`
	Errors     []string         `json:"errors,omitempty"`

	RemovedDuplicates int64 `json:"removedDuplicates"`
}

// State 调度器的进程内状态。显式对象而非包级变量，
// 测试可以构造互相隔离的实例。
type State struct {
	mu        sync.Mutex
	lastRunAt time.Time
	lastRun   *JobRun
	running   bool
}

func NewState() *State {
	return &State{}
}

// tryAcquire 在通过最小间隔检查后占住运行权；失败返回 false 与原因
func (st *State) tryAcquire(now time.Time, minInterval time.Duration, force bool) (bool, string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.running {
		return false, "a run is already in progress"
	}
	if !force && !st.lastRunAt.IsZero() && now.Sub(st.lastRunAt) < minInterval {
		return false, "minimum interval not elapsed"
	}
	st.running = true
	return true, ""
}

// finish 记录终态；updateLastRun 为 false 时保留旧的 lastRunAt，
// 让下一次触发不被最小间隔挡住
func (st *State) finish(run *JobRun, startedAt time.Time, updateLastRun bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.running = false
	st.lastRun = run
	if updateLastRun {
		st.lastRunAt = startedAt
	}
}

// snapshot 读取当前状态，无副作用
func (st *State) snapshot() (lastRunAt time.Time, lastRun *JobRun, running bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastRunAt, st.lastRun, st.running
}
