package collector

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Item 统一采集后的基础结构，id 由存储层分配
type Item struct {
	Title       string
	URL         string
	Source      string
	Category    string
	Description string
	PublishedAt time.Time

	// 互动数据，来源页没有的字段保持 0
	Likes int
	Views int
	Saves int

	// 源平台自己标注的“热门”，参与排行加权
	PlatformTrending bool

	// 竞赛类条目特有字段
	Deadline *time.Time
	IsActive bool

	RawData map[string]any
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	// Categories 返回该源能提供的分类
	Categories() []string
	// Fetch 拉取并归一化一批条目，limit 为条数上限
	Fetch(ctx context.Context, category string, limit int) ([]Item, error)
}

// Supports 判断 fetcher 是否覆盖指定分类
func Supports(f Fetcher, category string) bool {
	for _, c := range f.Categories() {
		if c == category {
			return true
		}
	}
	return false
}

// parseCount 解析 "1.2k" / "3,456" / "789" 这类互动数文案
func parseCount(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1000000
		s = strings.TrimSuffix(s, "m")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f * mult)
}

// firstText 依次尝试多个选择器，返回第一个命中的非空文本
func firstText(root *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(root.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// absoluteURL 把相对链接补全为绝对地址
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
