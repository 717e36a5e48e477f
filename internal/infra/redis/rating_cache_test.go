package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
)

type countingRatings struct {
	top, chart int
}

func (r *countingRatings) TopCrammers(_ context.Context, q rating.Query) ([]domain.Crammer, error) {
	r.top++
	return []domain.Crammer{{Rank: 1, Key: "user:u1", Label: q.Extension, Crammers: 12.5}}, nil
}

func (r *countingRatings) ChartSeries(_ context.Context, q rating.ChartQuery) ([]domain.ChartPoint, error) {
	r.chart++
	return []domain.ChartPoint{{Key: q.Owner.Key(), Day: "2024-11-22", Sessions: 2}}, nil
}

func TestRatingCacheServesWithinTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	next := &countingRatings{}
	cache := NewRatingCache(newClient(mr), next, 5*time.Second)
	ctx := context.Background()
	q := rating.Query{Extension: "arithmetic", Limit: 10}

	for i := 0; i < 2; i++ {
		rows, err := cache.TopCrammers(ctx, q)
		if err != nil {
			t.Fatalf("top crammers: %v", err)
		}
		if len(rows) != 1 || rows[0].Label != "arithmetic" || rows[0].Crammers != 12.5 {
			t.Fatalf("unexpected rows %+v", rows)
		}
	}
	if next.top != 1 {
		t.Fatalf("expected one computation, got %d", next.top)
	}

	if _, err := cache.TopCrammers(ctx, rating.Query{Extension: "clock"}); err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if next.top != 2 {
		t.Fatalf("different query must not share a key, computations=%d", next.top)
	}

	mr.FastForward(6 * time.Second)
	if _, err := cache.TopCrammers(ctx, q); err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if next.top != 3 {
		t.Fatalf("expected recomputation after ttl, got %d", next.top)
	}
}

func TestRatingCacheKeysChartByOwner(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	next := &countingRatings{}
	cache := NewRatingCache(newClient(mr), next, time.Minute)
	ctx := context.Background()

	a, err := cache.ChartSeries(ctx, rating.ChartQuery{Owner: domain.Authenticated("u1")})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	b, err := cache.ChartSeries(ctx, rating.ChartQuery{Owner: domain.Authenticated("u2")})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if next.chart != 2 || a[0].Key == b[0].Key {
		t.Fatalf("owners must not share cached series: %+v %+v", a, b)
	}
}
