package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache 是读路径使用的 TTL 缓存。写入方通过 Delete 的前缀模式
// 一次性失效某个实体名下的全部派生视图。
type Cache interface {
	// Get 未命中或已过期时返回 (nil, false)
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set 写入并以 ttl 计时；ttl <= 0 时不写入
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete 支持精确 key 或以 * 结尾的前缀模式，返回删除条数
	Delete(ctx context.Context, pattern string) int
}

// ---------- 缓存 key 约定 ----------
//
// 所有 key 都是查询参数的确定性函数，相同请求必然命中相同 key：
//   inspire:list:<category>:<JSON{q,sort,page,limit}>
//   inspire:trending:<category>:<timeframe>:<limit>
//   inspire:user:<userID>:...
//   inspire:stats

const keyPrefix = "inspire"

// ListQuery 描述一次分页列表查询
type ListQuery struct {
	Query string `json:"q"`
	Sort  string `json:"sort"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// ListKey 分页列表视图的缓存 key
func ListKey(category string, q ListQuery) string {
	// 结构体字段顺序固定，json.Marshal 输出稳定
	bs, _ := json.Marshal(q)
	return fmt.Sprintf("%s:list:%s:%s", keyPrefix, category, bs)
}

// TrendingKey 热门排行视图的缓存 key
func TrendingKey(category, timeframe string, limit int) string {
	return fmt.Sprintf("%s:trending:%s:%s:%d", keyPrefix, category, timeframe, limit)
}

// UserKey 用户名下视图的缓存 key；parts 逐段拼接
func UserKey(userID string, parts ...any) string {
	key := fmt.Sprintf("%s:user:%s", keyPrefix, userID)
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// UserPattern 匹配某个用户全部缓存视图的前缀模式，用于写失效
func UserPattern(userID string) string {
	return fmt.Sprintf("%s:user:%s:*", keyPrefix, userID)
}

// ListPattern 匹配全部列表视图的前缀模式
func ListPattern() string {
	return keyPrefix + ":list:*"
}

// TrendingPattern 匹配某分类全部热门视图的前缀模式
func TrendingPattern(category string) string {
	return fmt.Sprintf("%s:trending:%s:*", keyPrefix, category)
}

// StatsKey 聚合统计的缓存 key
func StatsKey() string {
	return keyPrefix + ":stats"
}
