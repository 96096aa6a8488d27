package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	unstopAPIURL        = "https://unstop.com/api/public/opportunity/search-result"
	unstopMaxBodyBytes  = 2 << 20 // 2MB
	unstopClientTimeout = 10 * time.Second
)

// UnstopFetcher 抓取 Unstop 的竞赛/黑客松列表。
// 三级兜底：公开 JSON API -> colly 解析列表页 -> browser-scraper 渲染后解析，
// 任意一级拿到数据即停止。
type UnstopFetcher struct {
	// BrowserScraperURL 为空时禁用浏览器兜底
	BrowserScraperURL string
}

func (u *UnstopFetcher) Name() string {
	return "unstop"
}

func (u *UnstopFetcher) Categories() []string {
	return []string{"hackathon", "design-contest"}
}

func unstopOppType(category string) string {
	if category == "design-contest" {
		return "competitions"
	}
	return "hackathons"
}

func (u *UnstopFetcher) Fetch(ctx context.Context, category string, limit int) ([]Item, error) {
	log.Println("fetch Unstop opportunities...")

	list, err := u.fetchWithAPI(ctx, category, limit)
	if err != nil {
		log.Printf("unstop: api fetch failed: %v", err)
	}
	if len(list) == 0 {
		list = u.fetchWithColly(ctx, category, limit)
	}
	if len(list) == 0 && u.BrowserScraperURL != "" {
		list = u.fetchWithBrowser(ctx, category, limit)
	}

	if len(list) == 0 {
		log.Printf("unstop: got 0 items for %s", category)
		return nil, err
	}
	return list, nil
}

type unstopAPIResp struct {
	Data struct {
		Data []struct {
			Title         string `json:"title"`
			PublicURL     string `json:"public_url"`
			SeoDetails    []struct {
				Description string `json:"description"`
			} `json:"seo_details"`
			ViewsCount    int    `json:"viewsCount"`
			RegisterCount int    `json:"registerCount"`
			Featured      bool   `json:"featured"`
			Status        string `json:"status"`
			StartDate     string `json:"start_date"`
			EndDate       string `json:"end_date"`
		} `json:"data"`
	} `json:"data"`
}

func (u *UnstopFetcher) fetchWithAPI(ctx context.Context, category string, limit int) ([]Item, error) {
	apiURL := fmt.Sprintf("%s?opportunity=%s&per_page=%d", unstopAPIURL, unstopOppType(category), limit)

	client := &http.Client{Timeout: unstopClientTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "InspireHubBot/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var data unstopAPIResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, unstopMaxBodyBytes)).Decode(&data); err != nil {
		return nil, err
	}

	now := time.Now()
	results := make([]Item, 0, len(data.Data.Data))
	for _, o := range data.Data.Data {
		if limit > 0 && len(results) >= limit {
			break
		}
		if o.Title == "" || o.PublicURL == "" {
			continue
		}

		publishedAt := now
		if o.StartDate != "" {
			if t, err := time.Parse(time.RFC3339, o.StartDate); err == nil {
				publishedAt = t
			}
		}
		var deadline *time.Time
		if o.EndDate != "" {
			if t, err := time.Parse(time.RFC3339, o.EndDate); err == nil {
				deadline = &t
			}
		}

		desc := ""
		if len(o.SeoDetails) > 0 {
			desc = o.SeoDetails[0].Description
		}

		results = append(results, Item{
			Title:            o.Title,
			URL:              absoluteURL("https://unstop.com", o.PublicURL),
			Source:           "unstop",
			Category:         category,
			Description:      desc,
			PublishedAt:      publishedAt,
			Likes:            o.RegisterCount,
			Views:            o.ViewsCount,
			PlatformTrending: o.Featured,
			Deadline:         deadline,
			IsActive:         !strings.EqualFold(o.Status, "CLOSED"),
			RawData: map[string]any{
				"status":    o.Status,
				"registers": o.RegisterCount,
			},
		})
	}
	return results, nil
}

func (u *UnstopFetcher) fetchWithColly(ctx context.Context, category string, limit int) []Item {
	if ctx.Err() != nil {
		return nil
	}

	c := colly.NewCollector(
		colly.AllowedDomains("unstop.com"),
		colly.UserAgent("InspireHubBot/1.0"),
	)
	c.SetRequestTimeout(8 * time.Second)

	results := make([]Item, 0, 30)
	now := time.Now()

	c.OnHTML("div.single_profile, app-competition-listing div[class*='opportunity']", func(e *colly.HTMLElement) {
		if limit > 0 && len(results) >= limit {
			return
		}
		title := strings.TrimSpace(e.ChildText("h2, .double-wrap h2"))
		if title == "" {
			return
		}
		href := strings.TrimSpace(e.ChildAttr("a", "href"))
		if href == "" {
			return
		}

		results = append(results, Item{
			Title:       title,
			URL:         absoluteURL("https://unstop.com", href),
			Source:      "unstop",
			Category:    category,
			Description: strings.TrimSpace(e.ChildText("p")),
			PublishedAt: now,
			Views:       parseCount(e.ChildText("[class*='views'], [class*='seperate_box']")),
			IsActive:    true,
			RawData:     map[string]any{"via": "html"},
		})
	})

	listURL := "https://unstop.com/" + unstopOppType(category)
	if err := c.Visit(listURL); err != nil {
		log.Printf("unstop: colly visit failed: %v", err)
		return nil
	}
	c.Wait()
	return results
}

// extractRequest/Response 与 cmd/browser-scraper 的协议保持一致
type extractRequest struct {
	URL      string `json:"url"`
	MaxChars int    `json:"maxChars"`
}

type extractResponse struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// fetchWithBrowser 走 browser-scraper 边车渲染页面后做行级解析，
// 只在前两级兜底都拿不到数据时使用。
func (u *UnstopFetcher) fetchWithBrowser(ctx context.Context, category string, limit int) []Item {
	reqBody, _ := json.Marshal(extractRequest{
		URL:      "https://unstop.com/" + unstopOppType(category),
		MaxChars: 8000,
	})

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BrowserScraperURL+"/extract", bytes.NewReader(reqBody))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("unstop: browser-scraper request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	var er extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, unstopMaxBodyBytes)).Decode(&er); err != nil || !er.OK {
		log.Printf("unstop: browser-scraper extract failed: ok=%v err=%v", er.OK, err)
		return nil
	}

	// 渲染文本没有结构化链接，条目统一指向列表页锚点，
	// 后续轮次 API 恢复后会以 sourceUrl 去重收敛
	now := time.Now()
	listURL := "https://unstop.com/" + unstopOppType(category)
	results := make([]Item, 0, 20)
	for _, line := range strings.Split(er.Text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 12 || len(line) > 160 {
			continue
		}
		if limit > 0 && len(results) >= limit {
			break
		}
		results = append(results, Item{
			Title:       line,
			URL:         fmt.Sprintf("%s#%d", listURL, len(results)+1),
			Source:      "unstop",
			Category:    category,
			Description: line,
			PublishedAt: now,
			IsActive:    true,
			RawData:     map[string]any{"via": "browser"},
		})
	}
	return results
}
