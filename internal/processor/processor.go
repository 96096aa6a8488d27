package processor

import (
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/InspireHub/internal/collector"
)

// Record 是写入存储层前的统一结构，id 由存储层分配
type Record struct {
	Title       string
	SourceURL   string
	Source      string
	Category    string
	Description string
	PublishedAt time.Time

	Likes int
	Views int
	Saves int

	PlatformTrending bool
	Deadline         *time.Time
	IsActive         bool

	RawData map[string]any
}

// SimpleProcessor 做数据清洗与校验：非法条目被丢弃并计数，不会进入存储
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process 归一化一批条目。同批内相同 URL 只保留先出现的一条
// （跨批次的重复由存储层的去重阶段处理），返回值附带被丢弃的条数。
func (p *SimpleProcessor) Process(items []collector.Item) (out []Record, dropped int) {
	out = make([]Record, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		if !valid(it) {
			dropped++
			continue
		}
		if _, ok := seen[it.URL]; ok {
			continue
		}
		seen[it.URL] = struct{}{}

		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			// 没有介绍时用标题兜底
			desc = strings.TrimSpace(it.Title)
		}

		out = append(out, Record{
			Title:            strings.TrimSpace(it.Title),
			SourceURL:        it.URL,
			Source:           it.Source,
			Category:         it.Category,
			Description:      truncateRunes(desc, 600),
			PublishedAt:      it.PublishedAt,
			Likes:            clampNonNegative(it.Likes),
			Views:            clampNonNegative(it.Views),
			Saves:            clampNonNegative(it.Saves),
			PlatformTrending: it.PlatformTrending,
			Deadline:         it.Deadline,
			IsActive:         it.IsActive,
			RawData:          it.RawData,
		})
	}

	return out, dropped
}

// valid 校验必填字段：标题、来源、合法的 http(s) URL、非零发布时间
func valid(it collector.Item) bool {
	if strings.TrimSpace(it.Title) == "" || it.Source == "" || it.Category == "" {
		return false
	}
	if it.PublishedAt.IsZero() {
		return false
	}
	u, err := url.Parse(it.URL)
	if err != nil {
		return false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	return true
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// truncateRunes 按 rune 数截断，防止外部服务返回异常长文本导致入库失败
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
