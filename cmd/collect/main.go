package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/collector"
	"github.com/LJTian/InspireHub/internal/config"
	"github.com/LJTian/InspireHub/internal/ratelimit"
	"github.com/LJTian/InspireHub/internal/scheduler"
	"github.com/LJTian/InspireHub/internal/scraper"
	"github.com/LJTian/InspireHub/internal/storage"
)

// 一个仅执行一轮采集任务的命令行入口：适合手动触发或容器内定时任务
func main() {
	cfg := config.Load()

	c := cache.Dial(cfg.RedisAddr)
	store, err := storage.NewStore(cfg.PostgresDSN, c)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保各个数据源存在（与 cmd/api 保持一致）
	if _, err := store.EnsureSource("devpost", "Devpost", "https://devpost.com"); err != nil {
		log.Fatalf("ensure source devpost failed: %v", err)
	}
	if _, err := store.EnsureSource("unstop", "Unstop", "https://unstop.com"); err != nil {
		log.Fatalf("ensure source unstop failed: %v", err)
	}
	if _, err := store.EnsureSource("behance", "Behance", "https://www.behance.net"); err != nil {
		log.Fatalf("ensure source behance failed: %v", err)
	}
	if _, err := store.EnsureSource("dribbble", "Dribbble", "https://dribbble.com"); err != nil {
		log.Fatalf("ensure source dribbble failed: %v", err)
	}

	limits := ratelimit.NewRegistry()
	limits.Register("devpost", ratelimit.NewSlidingWindow(10, time.Minute))
	limits.Register("unstop", ratelimit.NewSlidingWindow(5, time.Minute))
	limits.Register("behance", ratelimit.NewSlidingWindow(6, time.Minute))
	limits.Register("dribbble", ratelimit.NewTokenBucket(60, 1))

	orch := scraper.New(scraper.Config{
		Fetchers: []collector.Fetcher{
			&collector.DevpostFetcher{},
			&collector.UnstopFetcher{BrowserScraperURL: cfg.BrowserScraperURL},
			&collector.BehanceFetcher{},
			&collector.DribbbleFetcher{},
		},
		Limiters:       limits,
		Sink:           store,
		ActiveSources:  store.ActiveSourceCodes,
		PerSourceLimit: cfg.PerSourceLimit,
	})

	sched := scheduler.New(scheduler.Config{
		Ingestor:      orch,
		Cleaner:       storage.NewDeduplicator(store),
		Store:         store,
		Cache:         c,
		Categories:    cfg.Categories,
		MinInterval:   cfg.MinInterval,
		CategoryDelay: cfg.CategoryDelay,
	})

	// Ctrl+C 中断当前轮次，已入库的数据保留
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := sched.Trigger(ctx, scheduler.Options{Force: true})
	log.Printf("collect done: status=%s saved categories=%d removed=%d errors=%v",
		run.Status, len(run.Categories), run.RemovedDuplicates, run.Errors)

	if run.Status == scheduler.StatusFailed {
		os.Exit(1)
	}
}
