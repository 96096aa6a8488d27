package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Item 一条采集入库的内容（竞赛或设计灵感）。
// source_url 是条目的规范身份：同一条目在多轮采集间以它对齐，
// 入库时不做唯一约束，重复行由去重阶段统一收敛。
type Item struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:512" json:"title"`
	SourceURL   string `gorm:"size:1024;index" json:"sourceUrl"`
	Source      string `gorm:"size:64;index" json:"source"`
	Category    string `gorm:"size:64;index" json:"category"`
	// 长度控制在约 600 个字符（在 processor 中按 rune 截断）
	Description string    `gorm:"size:600" json:"description"`
	PublishedAt time.Time `gorm:"index" json:"publishedAt"`

	Likes int `json:"likes"`
	Views int `json:"views"`
	Saves int `json:"saves"`

	PlatformTrending bool `gorm:"index" json:"isPlatformTrending"`

	Deadline *time.Time `json:"deadline,omitempty"`
	IsActive bool       `json:"isActive"`

	ExtraData datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Score 是排行阶段算出的派生值，不落库
	Score float64 `gorm:"-" json:"score,omitempty"`
}

type Store struct {
	DB    *gorm.DB
	Cache cache.Cache
}

func NewStore(dsn string, c cache.Cache) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Item{}, &Source{}, &Bookmark{}); err != nil {
		return nil, err
	}

	return &Store{DB: db, Cache: c}, nil
}

// NewStoreWithDB 跳过迁移直接挂在现有连接上，供测试注入 sqlmock
func NewStoreWithDB(db *gorm.DB, c cache.Cache) *Store {
	return &Store{DB: db, Cache: c}
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// SaveBatch 追加保存一批归一化条目。入库阶段不判重也不更新旧行，
// 后续的去重与排行阶段是幂等的，会把重复行收敛掉。
func (s *Store) SaveBatch(records []processor.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]Item, 0, len(records))
	for _, r := range records {
		rows = append(rows, Item{
			Title:            toValidUTF8(r.Title),
			SourceURL:        r.SourceURL,
			Source:           r.Source,
			Category:         r.Category,
			Description:      toValidUTF8(r.Description),
			PublishedAt:      r.PublishedAt,
			Likes:            r.Likes,
			Views:            r.Views,
			Saves:            r.Saves,
			PlatformTrending: r.PlatformTrending,
			Deadline:         r.Deadline,
			IsActive:         r.IsActive,
			ExtraData:        datatypes.JSONMap(r.RawData),
		})
	}

	if err := s.DB.Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListItems 按分类返回分页列表，并用缓存层做读加速。
// key 是查询参数的确定性函数，新一轮采集完成后由调度器整体失效。
func (s *Store) ListItems(ctx context.Context, category string, q cache.ListQuery) ([]Item, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Sort == "" {
		q.Sort = "latest"
	}

	cacheKey := cache.ListKey(category, q)
	if s.Cache != nil {
		if bs, ok := s.Cache.Get(ctx, cacheKey); ok {
			var cached []Item
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Item
	db := s.DB.Model(&Item{})
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if q.Query != "" {
		db = db.Where("title ILIKE ?", "%"+q.Query+"%")
	}
	switch q.Sort {
	case "popular":
		db = db.Order("likes DESC").Order("published_at DESC")
	default:
		db = db.Order("published_at DESC")
	}
	if err := db.Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&list).Error; err != nil {
		return nil, err
	}

	// 回写缓存（5 分钟，减轻读路径的 DB 压力）
	const listCacheTTL = 5 * time.Minute
	if s.Cache != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			s.Cache.Set(ctx, cacheKey, bs, listCacheTTL)
		}
	}

	return list, nil
}

// ListForRanking 返回某分类参与排行计算的候选集：
// 平台热门条目全量保留，其余只取发布时间落在窗口内的。
// 是否最终可排行由 trending 包的资格规则决定，这里只缩小扫描范围。
func (s *Store) ListForRanking(category string, windowStart time.Time) ([]Item, error) {
	var list []Item
	err := s.DB.Model(&Item{}).
		Where("category = ?", category).
		Where("platform_trending = ? OR published_at >= ?", true, windowStart).
		Order("published_at DESC").
		Limit(1000).
		Find(&list).Error
	return list, err
}
