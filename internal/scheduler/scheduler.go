package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/errs"
	"github.com/LJTian/InspireHub/internal/scraper"
	"github.com/LJTian/InspireHub/internal/storage"
	"github.com/LJTian/InspireHub/internal/trending"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	// 统计是长生命周期视图，跨多轮任务有效
	statsCacheTTL = 24 * time.Hour
	// 调度器预热的排行视图 TTL，下一轮任务会整体重建
	trendingCacheTTL = 30 * time.Minute
	// 排行视图的条数上限
	trendingLimit = 50
)

// Ingestor 按分类执行一轮采集
type Ingestor interface {
	RunWithRetry(ctx context.Context, category string) (*scraper.RunResult, error)
}

// Cleaner 收敛重复条目
type Cleaner interface {
	Clean() (int64, error)
}

// Store 调度器对存储层的最小依赖
type Store interface {
	ListForRanking(category string, windowStart time.Time) ([]storage.Item, error)
	Statistics(now time.Time) (*storage.Statistics, error)
}

// Options 一次触发的参数
type Options struct {
	// Force 跳过最小间隔检查（手动触发用）
	Force bool
	// Category 只跑指定分类；为空跑全部
	Category string
}

// Config 调度器的装配参数
type Config struct {
	Ingestor Ingestor
	Cleaner  Cleaner
	Store    Store
	Cache    cache.Cache

	Categories    []string
	MinInterval   time.Duration
	CategoryDelay time.Duration
}

// Scheduler 驱动整条流水线：顺序处理各分类（分类之间留固定停顿），
// 然后去重、刷新排行缓存、更新统计。自动运行之间有最小间隔约束，
// 手动触发可用 Force 绕过。
type Scheduler struct {
	cron     *cron.Cron
	ingestor Ingestor
	cleaner  Cleaner
	store    Store
	cache    cache.Cache
	state    *State

	categories    []string
	minInterval   time.Duration
	categoryDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Scheduler {
	s := &Scheduler{
		cron:          cron.New(),
		ingestor:      cfg.Ingestor,
		cleaner:       cfg.Cleaner,
		store:         cfg.Store,
		cache:         cfg.Cache,
		state:         NewState(),
		categories:    cfg.Categories,
		minInterval:   cfg.MinInterval,
		categoryDelay: cfg.CategoryDelay,
		now:           time.Now,
		sleep:         sleepCtx,
	}
	if s.minInterval <= 0 {
		s.minInterval = 10 * time.Minute
	}
	return s
}

// Start 注册 cron 任务并启动。首轮采集延迟执行，
// 避免与进程启动期的首批请求争抢资源。
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		s.Trigger(context.Background(), Options{})
	}); err != nil {
		return err
	}
	s.cron.Start()

	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		s.Trigger(context.Background(), Options{})
	})
	return nil
}

// Stop 停止后续的自动触发；在途任务自行跑完
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Trigger 执行一轮任务并返回结构化结果。任何失败都收敛在 JobRun 里，
// 不会以裸异常形态穿透到 HTTP 边界。
func (s *Scheduler) Trigger(ctx context.Context, opts Options) *JobRun {
	now := s.now()

	ok, reason := s.state.tryAcquire(now, s.minInterval, opts.Force)
	if !ok {
		log.Printf("trigger skipped: %s", reason)
		return &JobRun{
			JobID:      uuid.NewString(),
			StartedAt:  now,
			FinishedAt: now,
			Status:     StatusSkipped,
			Skipped:    true,
			SkipReason: reason,
		}
	}

	run := &JobRun{
		JobID:     uuid.NewString(),
		StartedAt: now,
		Status:    StatusRunning,
	}
	log.Printf("[job %s] start collect job...", run.JobID)

	categories := s.categories
	if opts.Category != "" {
		categories = []string{opts.Category}
	}

	var (
		successes int
		failures  int
		cancelled bool
		storeDown bool
	)

	for i, cat := range categories {
		if cancelled || ctx.Err() != nil {
			// 取消后剩余分类不再执行，已入库的数据原样保留
			run.Categories = append(run.Categories, CategoryResult{Category: cat, Status: CategoryNotRun})
			cancelled = true
			continue
		}

		// 分类之间留固定停顿，避免出站请求瞬时堆积
		if i > 0 && s.categoryDelay > 0 {
			if err := s.sleep(ctx, s.categoryDelay); err != nil {
				run.Categories = append(run.Categories, CategoryResult{Category: cat, Status: CategoryNotRun})
				cancelled = true
				continue
			}
		}

		res, err := s.ingestor.RunWithRetry(ctx, cat)
		if err != nil {
			failures++
			cr := CategoryResult{Category: cat, Status: CategoryFailed, Error: err.Error()}
			if res != nil {
				cr.Saved = res.Saved
				cr.Dropped = res.Dropped
				cr.PerSource = res.PerSource
			}
			run.Categories = append(run.Categories, cr)
			run.Errors = append(run.Errors, cat+": "+err.Error())
			log.Printf("[job %s] category %s failed: %v", run.JobID, cat, err)

			if ctx.Err() != nil {
				cancelled = true
			}
			// 首个分类就因存储不可用失败且后续无成功时，整轮按 failed 处理
			if errs.KindOf(err) == errs.KindFatal && successes == 0 {
				storeDown = true
			}
			continue
		}

		successes++
		storeDown = false
		run.Categories = append(run.Categories, CategoryResult{
			Category:  cat,
			Status:    CategorySuccess,
			Saved:     res.Saved,
			Dropped:   res.Dropped,
			PerSource: res.PerSource,
		})
		log.Printf("[job %s] category %s done, saved=%d dropped=%d", run.JobID, cat, res.Saved, res.Dropped)
	}

	// 采集有任何进展就执行后处理；去重与排行是幂等的，部分进展也安全
	if successes > 0 {
		removed, err := s.cleaner.Clean()
		if err != nil {
			run.Errors = append(run.Errors, "dedup: "+err.Error())
			log.Printf("[job %s] dedup error: %v", run.JobID, err)
		}
		run.RemovedDuplicates = removed

		s.refreshTrendingCache(ctx)
		s.refreshStatistics(ctx)

		// 列表视图整体失效，读路径下次回源拿到新数据
		if s.cache != nil {
			s.cache.Delete(ctx, cache.ListPattern())
		}
	}

	run.FinishedAt = s.now()
	switch {
	case failures == 0 && !cancelled && successes > 0:
		run.Status = StatusSuccess
	case successes > 0 || (cancelled && failures == 0):
		run.Status = StatusPartial
	default:
		run.Status = StatusFailed
	}

	// 存储在任何分类开始前就不可用时不推进 lastRunAt，
	// 下一次触发不应被最小间隔挡住
	s.state.finish(run, now, !storeDown)

	log.Printf("[job %s] done, status=%s removed=%d errors=%d",
		run.JobID, run.Status, run.RemovedDuplicates, len(run.Errors))
	return run
}

// refreshTrendingCache 为每个分类、每个窗口重建排行视图
func (s *Scheduler) refreshTrendingCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	now := s.now()

	for _, cat := range s.categories {
		// 旧的各种 limit 变体一并失效
		s.cache.Delete(ctx, cache.TrendingPattern(cat))

		for _, tf := range trending.Timeframes {
			windowStart := trending.WindowStart(tf, now)
			items, err := s.store.ListForRanking(cat, windowStart)
			if err != nil {
				log.Printf("trending refresh %s/%s: %v", cat, tf, err)
				continue
			}

			ranked := trending.Rank(items, now, windowStart)
			if len(ranked) > trendingLimit {
				ranked = ranked[:trendingLimit]
			}
			bs, err := json.Marshal(ranked)
			if err != nil {
				continue
			}
			s.cache.Set(ctx, cache.TrendingKey(cat, string(tf), trendingLimit), bs, trendingCacheTTL)
		}
	}
}

// refreshStatistics 重算聚合统计并以长 TTL 写入缓存
func (s *Scheduler) refreshStatistics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	st, err := s.store.Statistics(s.now())
	if err != nil {
		log.Printf("statistics refresh: %v", err)
		return
	}
	if bs, err := json.Marshal(st); err == nil {
		s.cache.Set(ctx, cache.StatsKey(), bs, statsCacheTTL)
	}
}

// StatusReport 对外暴露的调度器状态
type StatusReport struct {
	Running           bool                `json:"running"`
	LastRunAt         time.Time           `json:"lastRunAt"`
	NextEligibleRunAt time.Time           `json:"nextEligibleRunAt"`
	LastRun           *JobRun             `json:"lastRun,omitempty"`
	Statistics        *storage.Statistics `json:"statistics,omitempty"`
}

// Status 无副作用的状态探针
func (s *Scheduler) Status(ctx context.Context) StatusReport {
	lastRunAt, lastRun, running := s.state.snapshot()

	report := StatusReport{
		Running:   running,
		LastRunAt: lastRunAt,
		LastRun:   lastRun,
	}
	if !lastRunAt.IsZero() {
		report.NextEligibleRunAt = lastRunAt.Add(s.minInterval)
	}

	if s.cache != nil {
		if bs, ok := s.cache.Get(ctx, cache.StatsKey()); ok {
			var st storage.Statistics
			if err := json.Unmarshal(bs, &st); err == nil {
				report.Statistics = &st
			}
		}
	}
	return report
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
