package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/collector"
	"github.com/LJTian/InspireHub/internal/errs"
	"github.com/LJTian/InspireHub/internal/processor"
	"github.com/LJTian/InspireHub/internal/ratelimit"
	"github.com/LJTian/InspireHub/internal/scraper"
	"github.com/LJTian/InspireHub/internal/storage"
)

type fakeIngestor struct {
	calls []string
	// 指定分类返回的错误；未配置的分类返回成功结果
	failOn map[string]error
	// 每个分类成功时入库的条数
	saved int
	// afterCall 每次调用后执行，用于测试中途取消
	afterCall func()
}

func (f *fakeIngestor) RunWithRetry(ctx context.Context, category string) (*scraper.RunResult, error) {
	f.calls = append(f.calls, category)
	if f.afterCall != nil {
		defer f.afterCall()
	}
	if err, ok := f.failOn[category]; ok {
		return nil, err
	}
	return &scraper.RunResult{Category: category, Saved: f.saved}, nil
}

type fakeCleaner struct {
	removed int64
	calls   int
}

func (f *fakeCleaner) Clean() (int64, error) {
	f.calls++
	return f.removed, nil
}

type fakeStore struct {
	items []storage.Item
}

func (f *fakeStore) ListForRanking(category string, windowStart time.Time) ([]storage.Item, error) {
	return f.items, nil
}

func (f *fakeStore) Statistics(now time.Time) (*storage.Statistics, error) {
	return &storage.Statistics{TotalItems: int64(len(f.items)), GeneratedAt: now}, nil
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler(ing *fakeIngestor, clk *testClock) (*Scheduler, *fakeCleaner, *cache.Memory) {
	cleaner := &fakeCleaner{removed: 1}
	mem := cache.NewMemoryWithClock(clk.now)
	s := New(Config{
		Ingestor:    ing,
		Cleaner:     cleaner,
		Store:       &fakeStore{},
		Cache:       mem,
		Categories:  []string{"hackathon", "design-contest", "inspiration"},
		MinInterval: 10 * time.Minute,
		// 测试不需要分类间停顿
		CategoryDelay: 0,
	})
	s.now = clk.now
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s, cleaner, mem
}

func TestTriggerSuccessAllCategories(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ing := &fakeIngestor{saved: 3}
	s, cleaner, _ := newTestScheduler(ing, clk)

	run := s.Trigger(context.Background(), Options{})
	if run.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", run.Status)
	}
	if len(ing.calls) != 3 {
		t.Fatalf("ingestor calls = %v, want 3 categories", ing.calls)
	}
	if cleaner.calls != 1 {
		t.Fatalf("dedup must run exactly once, got %d", cleaner.calls)
	}
	if run.RemovedDuplicates != 1 {
		t.Fatalf("removedDuplicates = %d, want 1", run.RemovedDuplicates)
	}
	// 分类按固定顺序处理
	if ing.calls[0] != "hackathon" || ing.calls[2] != "inspiration" {
		t.Fatalf("categories out of order: %v", ing.calls)
	}
}

func TestTriggerMinIntervalSkips(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ing := &fakeIngestor{saved: 1}
	s, _, _ := newTestScheduler(ing, clk)

	first := s.Trigger(context.Background(), Options{})
	if first.Skipped {
		t.Fatalf("first trigger must run")
	}

	// 间隔不足：第二次必须被拦下且不触发采集
	clk.advance(time.Minute)
	second := s.Trigger(context.Background(), Options{})
	if !second.Skipped || second.Status != StatusSkipped {
		t.Fatalf("second trigger within interval should skip, got %+v", second)
	}
	if len(ing.calls) != 3 {
		t.Fatalf("ingestor must not be invoked on skip, calls=%v", ing.calls)
	}

	// Force 绕过最小间隔
	forced := s.Trigger(context.Background(), Options{Force: true})
	if forced.Skipped {
		t.Fatalf("forced trigger must run")
	}

	// 间隔走满后自动恢复
	clk.advance(time.Hour)
	third := s.Trigger(context.Background(), Options{})
	if third.Skipped {
		t.Fatalf("trigger after interval should run")
	}
}

func TestTriggerPartialOnSingleCategoryFailure(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ing := &fakeIngestor{
		saved:  2,
		failOn: map[string]error{"design-contest": errors.New("unstop: unexpected status 503")},
	}
	s, cleaner, _ := newTestScheduler(ing, clk)

	run := s.Trigger(context.Background(), Options{})
	if run.Status != StatusPartial {
		t.Fatalf("status = %q, want partial", run.Status)
	}
	if len(run.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", run.Errors)
	}
	// 失败分类不中断循环，三个分类都被尝试
	if len(ing.calls) != 3 {
		t.Fatalf("all categories must be attempted, calls=%v", ing.calls)
	}
	// 其余分类的数据照常进入后处理
	if cleaner.calls != 1 {
		t.Fatalf("post-processing must still run, cleaner calls=%d", cleaner.calls)
	}

	var failed *CategoryResult
	for i := range run.Categories {
		if run.Categories[i].Category == "design-contest" {
			failed = &run.Categories[i]
		}
	}
	if failed == nil || failed.Status != CategoryFailed || failed.Error == "" {
		t.Fatalf("failed category result wrong: %+v", failed)
	}
}

func TestTriggerFailedStoreDownDoesNotBlockNextRun(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	storeErr := errs.Errorf(errs.KindFatal, "save batch: connection refused")
	ing := &fakeIngestor{
		failOn: map[string]error{
			"hackathon":      storeErr,
			"design-contest": storeErr,
			"inspiration":    storeErr,
		},
	}
	s, cleaner, _ := newTestScheduler(ing, clk)

	run := s.Trigger(context.Background(), Options{})
	if run.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", run.Status)
	}
	if cleaner.calls != 0 {
		t.Fatalf("post-processing must not run on a failed run")
	}

	// lastRunAt 未推进：下一次触发不受最小间隔约束
	clk.advance(time.Minute)
	again := s.Trigger(context.Background(), Options{})
	if again.Skipped {
		t.Fatalf("failed run must not advance lastRunAt")
	}
}

func TestTriggerCancellationMarksRemainingNotRun(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())

	ing := &fakeIngestor{saved: 1}
	// 第一个分类完成后取消
	ing.afterCall = func() { cancel() }
	s, _, _ := newTestScheduler(ing, clk)

	run := s.Trigger(ctx, Options{})
	if run.Status != StatusPartial {
		t.Fatalf("cancelled run status = %q, want partial", run.Status)
	}
	if len(ing.calls) != 1 {
		t.Fatalf("only the first category should run, calls=%v", ing.calls)
	}

	notRun := 0
	for _, cr := range run.Categories {
		if cr.Status == CategoryNotRun {
			notRun++
		}
	}
	if notRun != 2 {
		t.Fatalf("remaining categories must be not-run, got %d", notRun)
	}
}

func TestTriggerRefreshesTrendingAndStats(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ing := &fakeIngestor{saved: 1}
	s, _, mem := newTestScheduler(ing, clk)
	s.store = &fakeStore{items: []storage.Item{
		{Title: "hot", PlatformTrending: true, PublishedAt: clk.now(), CreatedAt: clk.now()},
	}}

	ctx := context.Background()
	// 旧的列表视图应在任务完成后被整体失效
	mem.Set(ctx, "inspire:list:hackathon:{}", []byte("stale"), time.Hour)

	run := s.Trigger(ctx, Options{})
	if run.Status != StatusSuccess {
		t.Fatalf("status = %q", run.Status)
	}

	if _, ok := mem.Get(ctx, "inspire:list:hackathon:{}"); ok {
		t.Fatalf("list views must be invalidated after a run")
	}
	if _, ok := mem.Get(ctx, cache.TrendingKey("hackathon", "week", trendingLimit)); !ok {
		t.Fatalf("trending view must be warmed")
	}
	if _, ok := mem.Get(ctx, cache.StatsKey()); !ok {
		t.Fatalf("statistics must be cached")
	}

	report := s.Status(ctx)
	if report.Statistics == nil || report.Statistics.TotalItems != 1 {
		t.Fatalf("status report statistics wrong: %+v", report.Statistics)
	}
	if !report.NextEligibleRunAt.Equal(clk.now().Add(10 * time.Minute)) {
		t.Fatalf("nextEligibleRunAt = %s", report.NextEligibleRunAt)
	}
}

// flakyFetcher 供端到端编排测试使用的真实 collector.Fetcher
type flakyFetcher struct {
	name string
	cats []string
	fail bool
}

func (f *flakyFetcher) Name() string         { return f.name }
func (f *flakyFetcher) Categories() []string { return f.cats }

func (f *flakyFetcher) Fetch(ctx context.Context, category string, limit int) ([]collector.Item, error) {
	if f.fail {
		return nil, errors.New("unexpected status 503")
	}
	return []collector.Item{{
		Title:       "entry for " + category,
		URL:         "https://src.example/" + f.name + "/" + category,
		Source:      f.name,
		Category:    category,
		PublishedAt: time.Now(),
	}}, nil
}

type recordingSink struct {
	saved int
}

func (s *recordingSink) SaveBatch(rs []processor.Record) (int, error) {
	s.saved += len(rs)
	return len(rs), nil
}

// 走真实编排器：一个分类的唯一数据源一直失败时，
// 失败必须冒到分类级并把整轮任务定为 partial，而不是埋在源状态里
func TestTriggerWithOrchestratorSurfacesCategoryFailure(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := &recordingSink{}
	orch := scraper.New(scraper.Config{
		Fetchers: []collector.Fetcher{
			&flakyFetcher{name: "devpost", cats: []string{"hackathon", "inspiration"}},
			&flakyFetcher{name: "unstop", cats: []string{"design-contest"}, fail: true},
		},
		Limiters:   ratelimit.NewRegistry(),
		Sink:       sink,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})

	cleaner := &fakeCleaner{}
	mem := cache.NewMemoryWithClock(clk.now)
	s := New(Config{
		Ingestor:    orch,
		Cleaner:     cleaner,
		Store:       &fakeStore{},
		Cache:       mem,
		Categories:  []string{"hackathon", "design-contest", "inspiration"},
		MinInterval: 10 * time.Minute,
	})
	s.now = clk.now
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	run := s.Trigger(context.Background(), Options{})
	if run.Status != StatusPartial {
		t.Fatalf("status = %q, want partial", run.Status)
	}
	if len(run.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry", run.Errors)
	}

	var failed *CategoryResult
	for i := range run.Categories {
		if run.Categories[i].Category == "design-contest" {
			failed = &run.Categories[i]
		}
	}
	if failed == nil || failed.Status != CategoryFailed {
		t.Fatalf("design-contest result wrong: %+v", failed)
	}
	// 源级错误细节仍然保留
	if failed.PerSource["unstop"].Error == "" {
		t.Fatalf("per-source error missing: %+v", failed.PerSource)
	}

	// 另两个分类的数据照常入库
	if sink.saved != 2 {
		t.Fatalf("saved = %d, want 2", sink.saved)
	}
}

func TestTriggerSingleCategoryOption(t *testing.T) {
	clk := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ing := &fakeIngestor{saved: 1}
	s, _, _ := newTestScheduler(ing, clk)

	run := s.Trigger(context.Background(), Options{Force: true, Category: "inspiration"})
	if run.Status != StatusSuccess {
		t.Fatalf("status = %q", run.Status)
	}
	if len(ing.calls) != 1 || ing.calls[0] != "inspiration" {
		t.Fatalf("only the requested category should run, calls=%v", ing.calls)
	}
}
