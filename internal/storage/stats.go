package storage

import (
	"time"
)

// Statistics 一轮任务结束后计算的聚合统计，由调度器写入缓存长期保留
type Statistics struct {
	TotalItems    int64            `json:"totalItems"`
	ByCategory    map[string]int64 `json:"byCategory"`
	BySource      map[string]int64 `json:"bySource"`
	RecentCount   int64            `json:"recentCount"`   // 最近 24h 发布
	TrendingCount int64            `json:"trendingCount"` // 源平台标记热门
	GeneratedAt   time.Time        `json:"generatedAt"`
}

type groupCount struct {
	Key   string
	Count int64
}

// Statistics 计算当前全量数据的聚合统计
func (s *Store) Statistics(now time.Time) (*Statistics, error) {
	st := &Statistics{
		ByCategory:  make(map[string]int64),
		BySource:    make(map[string]int64),
		GeneratedAt: now,
	}

	if err := s.DB.Model(&Item{}).Count(&st.TotalItems).Error; err != nil {
		return nil, err
	}

	var byCat []groupCount
	if err := s.DB.
		Raw(`SELECT category AS key, COUNT(*) AS count FROM items GROUP BY category`).
		Scan(&byCat).Error; err != nil {
		return nil, err
	}
	for _, g := range byCat {
		st.ByCategory[g.Key] = g.Count
	}

	var bySrc []groupCount
	if err := s.DB.
		Raw(`SELECT source AS key, COUNT(*) AS count FROM items GROUP BY source`).
		Scan(&bySrc).Error; err != nil {
		return nil, err
	}
	for _, g := range bySrc {
		st.BySource[g.Key] = g.Count
	}

	if err := s.DB.Model(&Item{}).
		Where("published_at >= ?", now.Add(-24*time.Hour)).
		Count(&st.RecentCount).Error; err != nil {
		return nil, err
	}

	if err := s.DB.Model(&Item{}).
		Where("platform_trending = ?", true).
		Count(&st.TrendingCount).Error; err != nil {
		return nil, err
	}

	return st, nil
}
