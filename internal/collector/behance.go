package collector

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// BehanceFetcher 抓取 Behance 精选画廊页面。
// 页面结构可能调整，此处基于当前的 DOM 结构做“尽力而为”的解析。
type BehanceFetcher struct{}

func (b *BehanceFetcher) Name() string {
	return "behance"
}

func (b *BehanceFetcher) Categories() []string {
	return []string{"inspiration", "design-contest"}
}

func (b *BehanceFetcher) galleryURL(category string) string {
	if category == "design-contest" {
		return "https://www.behance.net/galleries/contests"
	}
	return "https://www.behance.net/galleries"
}

func (b *BehanceFetcher) Fetch(ctx context.Context, category string, limit int) ([]Item, error) {
	log.Println("fetch Behance galleries...")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.AllowedDomains("www.behance.net", "behance.net"),
		colly.UserAgent("InspireHubBot/1.0"),
	)
	c.SetRequestTimeout(8 * time.Second)

	results := make([]Item, 0, 50)
	now := time.Now()

	c.OnHTML("div.ProjectCoverNeue-root, div[class*='ProjectCover']", func(e *colly.HTMLElement) {
		if limit > 0 && len(results) >= limit {
			return
		}

		title := firstText(e.DOM, "a[class*='Title']", ".Title-title")
		if title == "" {
			title = strings.TrimSpace(e.ChildAttr("a", "title"))
		}
		if title == "" {
			return
		}

		href := strings.TrimSpace(e.ChildAttr("a[href*='/gallery/']", "href"))
		if href == "" {
			href = strings.TrimSpace(e.ChildAttr("a", "href"))
		}
		if href == "" {
			return
		}
		fullURL := absoluteURL("https://www.behance.net", href)

		// 封面卡片上的点赞/浏览统计
		likes := parseCount(e.ChildText("span[class*='appreciation'], [class*='Stats'] span:first-child"))
		views := parseCount(e.ChildText("span[class*='views'], [class*='Stats'] span:nth-child(2)"))

		desc := firstText(e.DOM, "[class*='Subtitle']", "[class*='owners']")
		if desc == "" {
			desc = title
		}

		results = append(results, Item{
			Title:       title,
			URL:         fullURL,
			Source:      "behance",
			Category:    category,
			Description: desc,
			// 画廊页不带发布时间，以抓取时刻计
			PublishedAt:      now,
			Likes:            likes,
			Views:            views,
			PlatformTrending: e.DOM.Find("[class*='Featured'], [class*='badge']").Length() > 0,
			IsActive:         true,
			RawData: map[string]any{
				"gallery": category,
			},
		})
	})

	if err := c.Visit(b.galleryURL(category)); err != nil {
		return nil, err
	}
	c.Wait()

	if len(results) == 0 {
		log.Printf("behance: got 0 items for %s", category)
	}
	return results, nil
}
