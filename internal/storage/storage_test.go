package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/processor"
)

func TestSaveBatchInsertsRows(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewStoreWithDB(db, nil)

	now := time.Now()
	records := []processor.Record{
		{Title: "a", SourceURL: "https://x.example/a", Source: "devpost", Category: "hackathon", PublishedAt: now},
		{Title: "b", SourceURL: "https://x.example/b", Source: "devpost", Category: "hackathon", PublishedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	saved, err := s.SaveBatch(records)
	assert.NoError(t, err)
	assert.Equal(t, 2, saved)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSaveBatchEmptyIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewStoreWithDB(db, nil)

	saved, err := s.SaveBatch(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, saved)

	// 空批次不应触碰数据库
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %s", err)
	}
}

func TestListItemsReadThroughCache(t *testing.T) {
	db, mock := newMockDB(t)
	mem := cache.NewMemory()
	s := NewStoreWithDB(db, mem)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "title", "source_url", "source", "category"}).
		AddRow(1, "AI Build Week", "https://aibuild.devpost.com", "devpost", "hackathon")
	mock.ExpectQuery(`SELECT \* FROM "items"`).WillReturnRows(rows)

	q := cache.ListQuery{Sort: "latest", Page: 1, Limit: 20}
	list, err := s.ListItems(ctx, "hackathon", q)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "AI Build Week", list[0].Title)

	// 第二次相同查询必须整条命中缓存，不再打 DB
	list2, err := s.ListItems(ctx, "hackathon", q)
	assert.NoError(t, err)
	assert.Len(t, list2, 1)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("second call should not hit the database: %s", err)
	}
}

func TestStatisticsAggregates(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewStoreWithDB(db, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "items"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`SELECT category AS key, COUNT\(\*\) AS count FROM items GROUP BY category`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).
			AddRow("hackathon", 30).AddRow("inspiration", 12))
	mock.ExpectQuery(`SELECT source AS key, COUNT\(\*\) AS count FROM items GROUP BY source`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).
			AddRow("devpost", 25).AddRow("behance", 17))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "items" WHERE published_at >= \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "items" WHERE platform_trending = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	st, err := s.Statistics(now)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), st.TotalItems)
	assert.Equal(t, int64(30), st.ByCategory["hackathon"])
	assert.Equal(t, int64(17), st.BySource["behance"])
	assert.Equal(t, int64(7), st.RecentCount)
	assert.Equal(t, int64(5), st.TrendingCount)
	assert.Equal(t, now, st.GeneratedAt)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
