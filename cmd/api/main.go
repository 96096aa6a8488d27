package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/InspireHub/internal/api"
	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/collector"
	"github.com/LJTian/InspireHub/internal/config"
	"github.com/LJTian/InspireHub/internal/ratelimit"
	"github.com/LJTian/InspireHub/internal/scheduler"
	"github.com/LJTian/InspireHub/internal/scraper"
	"github.com/LJTian/InspireHub/internal/storage"
)

func main() {
	cfg := config.Load()

	c := cache.Dial(cfg.RedisAddr)
	store, err := storage.NewStore(cfg.PostgresDSN, c)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保各个数据源存在
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

	// 按数据源的接口特性分别配置限流：
	// 列表页抓取用滑动窗口压平瞬时并发，官方 API 用令牌桶贴合配额模型
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
	if err := sched.Start(cfg.CronSpec); err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	defer sched.Stop()

	// API
	r := gin.Default()
	apiServer := api.NewServer(store, c, sched, limits, cfg)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
