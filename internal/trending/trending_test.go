package trending

import (
	"testing"
	"time"

	"github.com/LJTian/InspireHub/internal/storage"
)

var (
	now         = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	windowStart = now.Add(-7 * 24 * time.Hour)
)

func TestScoreFormulaParity(t *testing.T) {
	it := storage.Item{
		Likes:            200,
		Views:            10000,
		Saves:            50,
		PlatformTrending: true,
		// 正好落在窗口中点，recency 加成应为 50
		PublishedAt: windowStart.Add(now.Sub(windowStart) / 2),
	}

	// 1000 + 0.5*200 + 0.01*10000 + 2*50 + 100*0.5 = 1350
	want := 1000.0 + 100.0 + 100.0 + 100.0 + 50.0
	if got := Score(it, now, windowStart); got != want {
		t.Fatalf("Score = %v, want %v", got, want)
	}
}

func TestScoreRecencyBoundaries(t *testing.T) {
	base := storage.Item{Likes: 100}

	// 窗口外发布：没有 recency 加成
	old := base
	old.PublishedAt = windowStart.Add(-time.Hour)
	if got := Score(old, now, windowStart); got != 50 {
		t.Fatalf("out-of-window score = %v, want 50 (likes only)", got)
	}

	// 刚好在 now 发布：加成取满 100
	fresh := base
	fresh.PublishedAt = now
	if got := Score(fresh, now, windowStart); got != 150 {
		t.Fatalf("at-now score = %v, want 150", got)
	}
}

func TestScoreMonotonicInLikes(t *testing.T) {
	it := storage.Item{PublishedAt: now.Add(-time.Hour), Views: 500, Saves: 3}

	prev := -1.0
	for likes := 0; likes <= 1000; likes += 100 {
		it.Likes = likes
		got := Score(it, now, windowStart)
		if got < prev {
			t.Fatalf("score decreased when likes rose to %d: %v < %v", likes, got, prev)
		}
		prev = got
	}
}

func TestEligibilityExcludesEntirely(t *testing.T) {
	// 非平台热门、窗口外、点赞不足：连排行输入都进不了
	cold := storage.Item{
		PlatformTrending: false,
		PublishedAt:      windowStart.Add(-48 * time.Hour),
		Likes:            50,
	}
	if Eligible(cold, windowStart) {
		t.Fatalf("cold item must not be eligible")
	}

	ranked := Rank([]storage.Item{cold}, now, windowStart)
	if len(ranked) != 0 {
		t.Fatalf("cold item leaked into ranked output: %+v", ranked)
	}

	// 平台热门无视窗口与点赞门槛
	hot := cold
	hot.PlatformTrending = true
	if !Eligible(hot, windowStart) {
		t.Fatalf("platform-trending item must be eligible")
	}

	// 窗口内且点赞达标
	warm := cold
	warm.PublishedAt = now.Add(-time.Hour)
	warm.Likes = 100
	if !Eligible(warm, windowStart) {
		t.Fatalf("in-window item with 100 likes must be eligible")
	}
}

func TestRankOrderAndTieBreak(t *testing.T) {
	mk := func(likes int, createdAt time.Time) storage.Item {
		return storage.Item{
			Likes:       likes,
			PublishedAt: windowStart, // recency 加成为 0，分数只由 likes 决定
			CreatedAt:   createdAt,
		}
	}

	older := mk(100, now.Add(-2*time.Hour))
	newer := mk(100, now.Add(-1*time.Hour))
	top := mk(500, now.Add(-3*time.Hour))

	ranked := Rank([]storage.Item{older, newer, top}, now, windowStart)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked items, got %d", len(ranked))
	}
	if ranked[0].Likes != 500 {
		t.Fatalf("highest score must rank first")
	}
	// 同分时 createdAt 新者在前
	if !ranked[1].CreatedAt.Equal(newer.CreatedAt) {
		t.Fatalf("tie must break by createdAt descending")
	}
	// 排行不修改入参
	if older.Score != 0 {
		t.Fatalf("Rank must not mutate its input")
	}
}

func TestWindowStart(t *testing.T) {
	if got := WindowStart(TimeframeDay, now); !got.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("day window = %s", got)
	}
	if got := WindowStart(TimeframeWeek, now); !got.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("week window = %s", got)
	}
	// month 按日历月回退，不是固定 30 天
	if got := WindowStart(TimeframeMonth, now); !got.Equal(time.Date(2025, 5, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("month window = %s", got)
	}
}

func TestParseTimeframeFallback(t *testing.T) {
	if ParseTimeframe("day") != TimeframeDay {
		t.Fatalf("day should parse")
	}
	if ParseTimeframe("fortnight") != TimeframeWeek {
		t.Fatalf("unknown timeframe should fall back to week")
	}
}
