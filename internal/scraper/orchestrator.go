package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/InspireHub/internal/collector"
	"github.com/LJTian/InspireHub/internal/errs"
	"github.com/LJTian/InspireHub/internal/processor"
	"github.com/LJTian/InspireHub/internal/ratelimit"
)

const (
	// 分类级整体失败的重试上限与基础退避
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// Sink 是编排器对存储层的最小依赖
type Sink interface {
	SaveBatch([]processor.Record) (int, error)
}

// SourceStatus 单个数据源在一轮采集中的结果
type SourceStatus struct {
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Dropped int    `json:"dropped"`
	Error   string `json:"error,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// RunResult 一个分类一轮采集的汇总
type RunResult struct {
	Category  string                  `json:"category"`
	Saved     int                     `json:"saved"`
	Dropped   int                     `json:"dropped"`
	PerSource map[string]SourceStatus `json:"perSource"`
}

// Config 编排器的装配参数
type Config struct {
	Fetchers []collector.Fetcher
	Limiters *ratelimit.Registry
	Sink     Sink

	// ActiveSources 返回启用中的数据源集合；nil 表示全部启用
	ActiveSources func() map[string]bool

	PerSourceLimit int
	MaxRetries     int
	RetryDelay     time.Duration
}

// Orchestrator 驱动一个分类下的全部数据源：限流 -> 抓取 -> 归一化 -> 入库。
// 单个源失败只记录状态不影响其它源；存储层失败会让整个分类失败。
type Orchestrator struct {
	fetchers      []collector.Fetcher
	limiters      *ratelimit.Registry
	proc          *processor.SimpleProcessor
	sink          Sink
	activeSources func() map[string]bool

	perSourceLimit int
	maxRetries     int
	retryDelay     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		fetchers:       cfg.Fetchers,
		limiters:       cfg.Limiters,
		proc:           processor.NewSimpleProcessor(),
		sink:           cfg.Sink,
		activeSources:  cfg.ActiveSources,
		perSourceLimit: cfg.PerSourceLimit,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		sleep:          sleepCtx,
	}
	if o.perSourceLimit <= 0 {
		o.perSourceLimit = 50
	}
	if o.maxRetries <= 0 {
		o.maxRetries = DefaultMaxRetries
	}
	if o.retryDelay <= 0 {
		o.retryDelay = DefaultRetryDelay
	}
	return o
}

// Run 对一个分类执行一轮采集。返回的 error 只会是分类级失败
// （存储不可用、全部源都失败或 ctx 取消）；部分源的软失败
// 收敛在 RunResult 里不上抛。
func (o *Orchestrator) Run(ctx context.Context, category string) (*RunResult, error) {
	res := &RunResult{
		Category:  category,
		PerSource: make(map[string]SourceStatus),
	}

	var active map[string]bool
	if o.activeSources != nil {
		active = o.activeSources()
	}

	var attempted, errored int
	for _, f := range o.fetchers {
		if !collector.Supports(f, category) {
			continue
		}
		name := f.Name()

		if active != nil && !active[name] {
			res.PerSource[name] = SourceStatus{Skipped: true}
			continue
		}
		attempted++

		// 限流等待是唯一的挂起点；取消只可能从这里或 Fetch 内部冒出来
		if lim, ok := o.limiters.Get(name); ok {
			if err := lim.Wait(ctx); err != nil {
				return res, err
			}
		}

		log.Printf("fetch from %s (%s)...", name, category)
		items, err := f.Fetch(ctx, category, o.perSourceLimit)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			// 单源失败不影响其它源
			log.Printf("fetch %s error: %v", name, err)
			res.PerSource[name] = SourceStatus{Error: err.Error()}
			errored++
			continue
		}

		records, dropped := o.proc.Process(items)
		res.Dropped += dropped

		saved := 0
		if len(records) > 0 {
			saved, err = o.sink.SaveBatch(records)
			if err != nil {
				// 存储不可用对整个分类是致命的
				return res, errs.E(errs.KindFatal, fmt.Errorf("save %s batch: %w", name, err))
			}
		}
		res.Saved += saved
		res.PerSource[name] = SourceStatus{
			Fetched: len(items),
			Saved:   saved,
			Dropped: dropped,
		}
		log.Printf("%s done, fetched=%d saved=%d dropped=%d", name, len(items), saved, dropped)
	}

	// 全部适用的源都失败时整个分类按瞬时失败上抛，交给重试层；
	// 只要有一个源成功，失败源就只体现在 PerSource 里
	if attempted > 0 && errored == attempted {
		return res, errs.Errorf(errs.KindTransient, "all %d sources failed for %s", errored, category)
	}
	return res, nil
}

// RunWithRetry 对分类级失败做有限重试，退避按 retryDelay * 2^attempt 递增。
// 部分源失败不触发重试（不算分类级失败）；ctx 取消立即放弃。
func (o *Orchestrator) RunWithRetry(ctx context.Context, category string) (*RunResult, error) {
	var lastErr error
	var lastRes *RunResult

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			delay := o.retryDelay * (1 << (attempt - 1))
			log.Printf("retry %s attempt %d after %s", category, attempt, delay)
			if err := o.sleep(ctx, delay); err != nil {
				return lastRes, err
			}
		}

		res, err := o.Run(ctx, category)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, err
		}
		lastRes, lastErr = res, err
	}

	return lastRes, lastErr
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
