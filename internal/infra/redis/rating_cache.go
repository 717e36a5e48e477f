package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
	"golang.org/x/sync/singleflight"
)

// RatingCache memoizes leaderboards and chart series for a short TTL.
// Readers may see results up to one TTL old.
type RatingCache struct {
	client *redis.Client
	next   app.Ratings
	ttl    time.Duration
	sf     singleflight.Group
}

func NewRatingCache(client *redis.Client, next app.Ratings, ttl time.Duration) *RatingCache {
	return &RatingCache{client: client, next: next, ttl: ttl}
}

func (c *RatingCache) TopCrammers(ctx context.Context, q rating.Query) ([]domain.Crammer, error) {
	var out []domain.Crammer
	err := c.cached(ctx, cacheKey("rating:top:", q), &out, func() (interface{}, error) {
		return c.next.TopCrammers(ctx, q)
	})
	return out, err
}

func (c *RatingCache) ChartSeries(ctx context.Context, q rating.ChartQuery) ([]domain.ChartPoint, error) {
	var out []domain.ChartPoint
	err := c.cached(ctx, cacheKey("rating:chart:", chartKey{q.Window, q.Extension, q.Owner.Key()}), &out, func() (interface{}, error) {
		return c.next.ChartSeries(ctx, q)
	})
	return out, err
}

// chartKey stands in for ChartQuery, whose identity has no exported fields.
type chartKey struct {
	Window    rating.Window
	Extension string
	Owner     string
}

func (c *RatingCache) cached(ctx context.Context, key string, dst interface{}, load func() (interface{}, error)) error {
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		return json.Unmarshal(raw, dst)
	}

	raw, err, _ := c.sf.Do(key, func() (interface{}, error) {
		value, err := load()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		// best-effort write
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dst)
}

func cacheKey(prefix string, q interface{}) string {
	raw, _ := json.Marshal(q)
	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s%s", prefix, hex.EncodeToString(sum[:]))
}
