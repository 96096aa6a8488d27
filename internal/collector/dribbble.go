package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

const (
	dribbbleDefaultAPIURL = "https://api.dribbble.com/v2/popular_shots"
	dribbbleMaxBodyBytes  = 512 * 1024 // 512KB，列表接口响应不大
	dribbbleClientTimeout = 10 * time.Second
)

var dribbbleAllowedHosts = []string{"api.dribbble.com"}

// DribbbleFetcher 通过 Dribbble API 抓取热门设计作品。
// 需要 DRIBBBLE_ACCESS_TOKEN；未配置时直接返回空结果而不是报错，
// 让其它数据源继续工作。
type DribbbleFetcher struct{}

func (d *DribbbleFetcher) Name() string {
	return "dribbble"
}

func (d *DribbbleFetcher) Categories() []string {
	return []string{"inspiration"}
}

type dribbbleShot struct {
	Title       string `json:"title"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	PublishedAt string `json:"published_at"`
	LikesCount  int    `json:"likes_count"`
	ViewsCount  int    `json:"views_count"`
	SavesCount  int    `json:"saves_count"`
	Animated    bool   `json:"animated"`
}

func (d *DribbbleFetcher) Fetch(ctx context.Context, category string, limit int) ([]Item, error) {
	token := os.Getenv("DRIBBBLE_ACCESS_TOKEN")
	if token == "" {
		log.Println("dribbble: no access token configured, skip")
		return nil, nil
	}

	log.Println("fetch Dribbble popular shots...")

	apiURL := os.Getenv("DRIBBBLE_API_URL")
	if apiURL == "" {
		apiURL = dribbbleDefaultAPIURL
	} else if !isAllowedHost(apiURL, dribbbleAllowedHosts) {
		log.Printf("fetch dribbble: DRIBBBLE_API_URL host not in whitelist, ignoring")
		apiURL = dribbbleDefaultAPIURL
	}

	client := &http.Client{Timeout: dribbbleClientTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dribbble: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "InspireHubBot/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dribbble: fetch shots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dribbble: unexpected status %d", resp.StatusCode)
	}

	var shots []dribbbleShot
	if err := json.NewDecoder(io.LimitReader(resp.Body, dribbbleMaxBodyBytes)).Decode(&shots); err != nil {
		return nil, fmt.Errorf("dribbble: decode: %w", err)
	}

	now := time.Now()
	results := make([]Item, 0, len(shots))
	for i, s := range shots {
		if limit > 0 && len(results) >= limit {
			break
		}
		if s.Title == "" || s.HTMLURL == "" {
			continue
		}

		publishedAt := now
		if s.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
				publishedAt = t
			}
		}

		results = append(results, Item{
			Title:       s.Title,
			URL:         s.HTMLURL,
			Source:      "dribbble",
			Category:    category,
			Description: s.Description,
			PublishedAt: publishedAt,
			Likes:       s.LikesCount,
			Views:       s.ViewsCount,
			Saves:       s.SavesCount,
			// popular 接口本身就是平台热门榜，前列条目打上热门标记
			PlatformTrending: i < 10,
			IsActive:         true,
			RawData: map[string]any{
				"animated": s.Animated,
				"rank":     i + 1,
			},
		})
	}

	if len(results) == 0 {
		log.Println("dribbble: no items fetched")
	}
	return results, nil
}
