package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/errs"
	"gorm.io/gorm"
)

// Bookmark 用户收藏的条目
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index:idx_user_item,unique" json:"userId"`
	ItemID    uint      `gorm:"index:idx_user_item,unique" json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddBookmark 收藏一个条目（已收藏则幂等返回）。
// 任何收藏写入都会把该用户名下的全部缓存视图整体失效。
func (s *Store) AddBookmark(ctx context.Context, userID string, itemID uint) error {
	var item Item
	if err := s.DB.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Errorf(errs.KindNotFound, "item %d not found", itemID)
		}
		return errs.E(errs.KindFatal, err)
	}

	b := Bookmark{UserID: userID, ItemID: itemID}
	if err := s.DB.Where("user_id = ? AND item_id = ?", userID, itemID).
		FirstOrCreate(&b).Error; err != nil {
		return errs.E(errs.KindFatal, err)
	}

	if s.Cache != nil {
		s.Cache.Delete(ctx, cache.UserPattern(userID))
	}
	return nil
}

// RemoveBookmark 取消收藏，同样触发该用户缓存的前缀失效
func (s *Store) RemoveBookmark(ctx context.Context, userID string, itemID uint) error {
	res := s.DB.Where("user_id = ? AND item_id = ?", userID, itemID).Delete(&Bookmark{})
	if res.Error != nil {
		return errs.E(errs.KindFatal, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.KindNotFound, "bookmark of item %d not found", itemID)
	}

	if s.Cache != nil {
		s.Cache.Delete(ctx, cache.UserPattern(userID))
	}
	return nil
}

// ListBookmarks 返回用户收藏的条目（按收藏时间倒序），带缓存
func (s *Store) ListBookmarks(ctx context.Context, userID string, page, limit int) ([]Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	cacheKey := cache.UserKey(userID, "bookmarks", page, limit)
	if s.Cache != nil {
		if bs, ok := s.Cache.Get(ctx, cacheKey); ok {
			var cached []Item
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Item
	err := s.DB.Model(&Item{}).
		Joins("JOIN bookmarks ON bookmarks.item_id = items.id").
		Where("bookmarks.user_id = ?", userID).
		Order("bookmarks.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}

	const bookmarkCacheTTL = 10 * time.Minute
	if s.Cache != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			s.Cache.Set(ctx, cacheKey, bs, bookmarkCacheTTL)
		}
	}
	return list, nil
}
