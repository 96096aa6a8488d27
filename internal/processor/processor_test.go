package processor

import (
	"strings"
	"testing"
	"time"

	"github.com/LJTian/InspireHub/internal/collector"
)

func TestProcessDeduplicatesWithinBatch(t *testing.T) {
	p := NewSimpleProcessor()
	now := time.Now()

	items := []collector.Item{
		{
			Title:       "Title 1",
			URL:         "https://example.com/1",
			Source:      "devpost",
			Category:    "hackathon",
			Description: "desc 1",
			PublishedAt: now,
			Likes:       1,
		},
		{
			Title:       "Title 1 duplicate by URL",
			URL:         "https://example.com/1",
			Source:      "devpost",
			Category:    "hackathon",
			PublishedAt: now,
			Likes:       2,
		},
		{
			Title:       "Title 2 no desc",
			URL:         "https://example.com/2",
			Source:      "devpost",
			Category:    "hackathon",
			PublishedAt: now,
		},
	}

	out, dropped := p.Process(items)
	if dropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", dropped)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records after in-batch dedupe, got %d", len(out))
	}

	// 先出现的一条胜出
	if out[0].Title != "Title 1" {
		t.Fatalf("first-seen item should win, got %q", out[0].Title)
	}

	// 没有 description 的条目应使用 Title 兜底
	if out[1].Description != "Title 2 no desc" {
		t.Fatalf("unexpected fallback description: %q", out[1].Description)
	}
}

func TestProcessDropsAndCountsInvalid(t *testing.T) {
	p := NewSimpleProcessor()
	now := time.Now()

	items := []collector.Item{
		// 合法
		{Title: "ok", URL: "https://example.com/ok", Source: "s", Category: "c", PublishedAt: now},
		// 空标题
		{Title: "  ", URL: "https://example.com/a", Source: "s", Category: "c", PublishedAt: now},
		// 非 http(s) URL
		{Title: "bad url", URL: "ftp://example.com/b", Source: "s", Category: "c", PublishedAt: now},
		// 缺 host
		{Title: "no host", URL: "https://", Source: "s", Category: "c", PublishedAt: now},
		// 零值发布时间
		{Title: "no time", URL: "https://example.com/d", Source: "s", Category: "c"},
		// 缺来源
		{Title: "no source", URL: "https://example.com/e", Category: "c", PublishedAt: now},
	}

	out, dropped := p.Process(items)
	if len(out) != 1 {
		t.Fatalf("expected only the valid record, got %d", len(out))
	}
	if dropped != 5 {
		t.Fatalf("expected 5 dropped, got %d", dropped)
	}
}

func TestProcessClampsNegativeEngagement(t *testing.T) {
	p := NewSimpleProcessor()
	out, _ := p.Process([]collector.Item{{
		Title: "t", URL: "https://example.com/x", Source: "s", Category: "c",
		PublishedAt: time.Now(), Likes: -3, Views: -1, Saves: -9,
	}})
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	r := out[0]
	if r.Likes != 0 || r.Views != 0 || r.Saves != 0 {
		t.Fatalf("engagement must be clamped to 0: %+v", r)
	}
}

func TestTruncateRunesLongDescription(t *testing.T) {
	long := strings.Repeat("设", 700)
	if got := truncateRunes(long, 600); len([]rune(got)) != 600 {
		t.Fatalf("truncateRunes length = %d, want 600", len([]rune(got)))
	}
	if got := truncateRunes("短文本", 600); got != "短文本" {
		t.Fatalf("short text should be unchanged: %q", got)
	}
}
