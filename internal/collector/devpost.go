package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	devpostDefaultAPIURL = "https://devpost.com/api/hackathons"
	devpostMaxBodyBytes  = 1 << 20 // 1MB
	devpostClientTimeout = 10 * time.Second
)

var devpostAllowedHosts = []string{"devpost.com", "api.devpost.com"}

// DevpostFetcher 通过 Devpost 公开 API 抓取黑客松列表。
// 可用环境变量 DEVPOST_API_URL 覆盖接口地址（仅允许白名单域名）。
type DevpostFetcher struct{}

func (d *DevpostFetcher) Name() string {
	return "devpost"
}

func (d *DevpostFetcher) Categories() []string {
	return []string{"hackathon"}
}

// 对应 devpost.com/api/hackathons 的响应结构
type devpostResp struct {
	Hackathons []struct {
		Title            string `json:"title"`
		URL              string `json:"url"`
		TagLine          string `json:"tagline"`
		OpenState        string `json:"open_state"` // upcoming / open / ended
		SubmissionPeriod string `json:"submission_period_dates"`
		FeaturedAt       string `json:"featured_at"`
		Featured         bool   `json:"featured"`
		RegistrationsCnt int    `json:"registrations_count"`
		FollowersCnt     int    `json:"followers_count"`
		Deadline         string `json:"submission_deadline"`
	} `json:"hackathons"`
}

func (d *DevpostFetcher) Fetch(ctx context.Context, category string, limit int) ([]Item, error) {
	log.Println("fetch Devpost hackathons...")

	apiURL := os.Getenv("DEVPOST_API_URL")
	if apiURL == "" {
		apiURL = devpostDefaultAPIURL
	} else if !isAllowedHost(apiURL, devpostAllowedHosts) {
		log.Printf("fetch devpost: DEVPOST_API_URL host not in whitelist, ignoring")
		apiURL = devpostDefaultAPIURL
	}

	client := &http.Client{Timeout: devpostClientTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("devpost: build request: %w", err)
	}
	req.Header.Set("User-Agent", "InspireHubBot/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("devpost: fetch hackathons: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devpost: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, devpostMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("devpost: read body: %w", err)
	}

	var data devpostResp
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("devpost: unmarshal: %w", err)
	}

	now := time.Now()
	results := make([]Item, 0, len(data.Hackathons))
	for _, h := range data.Hackathons {
		if limit > 0 && len(results) >= limit {
			break
		}
		if h.Title == "" || h.URL == "" {
			continue
		}

		publishedAt := now
		if h.FeaturedAt != "" {
			if t, err := time.Parse(time.RFC3339, h.FeaturedAt); err == nil {
				publishedAt = t
			}
		}

		var deadline *time.Time
		if h.Deadline != "" {
			if t, err := time.Parse(time.RFC3339, h.Deadline); err == nil {
				deadline = &t
			}
		}

		results = append(results, Item{
			Title:            h.Title,
			URL:              h.URL,
			Source:           "devpost",
			Category:         category,
			Description:      h.TagLine,
			PublishedAt:      publishedAt,
			Likes:            h.FollowersCnt,
			Views:            h.RegistrationsCnt,
			PlatformTrending: h.Featured,
			Deadline:         deadline,
			IsActive:         h.OpenState != "ended",
			RawData: map[string]any{
				"open_state":        h.OpenState,
				"submission_period": h.SubmissionPeriod,
				"registrations":     h.RegistrationsCnt,
			},
		})
	}

	if len(results) == 0 {
		log.Println("devpost: no items fetched")
	}
	return results, nil
}

// isAllowedHost 检查 URL 的主机名是否在白名单里
func isAllowedHost(rawURL string, allowed []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" {
		return false
	}
	for _, h := range allowed {
		if u.Hostname() == h {
			return true
		}
	}
	return false
}
