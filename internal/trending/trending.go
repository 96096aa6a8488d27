package trending

import (
	"sort"
	"time"

	"github.com/LJTian/InspireHub/internal/storage"
)

// Timeframe 排行的回看窗口
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// Timeframes 全部合法窗口，按粒度从小到大
var Timeframes = []Timeframe{TimeframeDay, TimeframeWeek, TimeframeMonth}

// ParseTimeframe 解析请求参数，非法值回落到 week
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case TimeframeDay, TimeframeWeek, TimeframeMonth:
		return Timeframe(s)
	default:
		return TimeframeWeek
	}
}

// 打分权重。排行结果要在不同实例间可复现，这些值不做配置
const (
	weightTrending = 1000
	weightLikes    = 0.5
	weightViews    = 0.01
	weightSaves    = 2
	weightRecency  = 100

	// 非平台热门条目参与排行的最低点赞数
	minLikes = 100
)

// WindowStart 由窗口与当前时刻推出窗口起点；month 按日历月回退
func WindowStart(tf Timeframe, now time.Time) time.Time {
	switch tf {
	case TimeframeDay:
		return now.Add(-24 * time.Hour)
	case TimeframeMonth:
		return now.AddDate(0, -1, 0)
	default:
		return now.Add(-7 * 24 * time.Hour)
	}
}

// Eligible 判断条目是否有排行资格：
// 平台热门直接入围；否则要求发布时间落在窗口内且点赞数达标。
// 不入围的条目被整体排除，而不是以 0 分参与。
func Eligible(it storage.Item, windowStart time.Time) bool {
	if it.PlatformTrending {
		return true
	}
	return !it.PublishedAt.Before(windowStart) && it.Likes >= minLikes
}

// Score 计算热度分。对条目本身只读，不修改持久化状态。
func Score(it storage.Item, now, windowStart time.Time) float64 {
	score := weightLikes*float64(it.Likes) +
		weightViews*float64(it.Views) +
		weightSaves*float64(it.Saves)

	if it.PlatformTrending {
		score += weightTrending
	}

	score += recencyBonus(it.PublishedAt, now, windowStart)
	return score
}

// recencyBonus 窗口内越新加成越高，最多 weightRecency；窗口外为 0
func recencyBonus(publishedAt, now, windowStart time.Time) float64 {
	if publishedAt.Before(windowStart) {
		return 0
	}
	total := now.Sub(windowStart)
	if total <= 0 {
		return 0
	}
	frac := float64(publishedAt.Sub(windowStart)) / float64(total)
	if frac < 0 {
		frac = 0
	}
	return weightRecency * frac
}

// Rank 过滤出有资格的条目并按分数降序排序，分数相同按 createdAt 降序。
// 返回新切片，Score 只写在返回值上。
func Rank(items []storage.Item, now, windowStart time.Time) []storage.Item {
	ranked := make([]storage.Item, 0, len(items))
	for _, it := range items {
		if !Eligible(it, windowStart) {
			continue
		}
		it.Score = Score(it, now, windowStart)
		ranked = append(ranked, it)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})

	return ranked
}
