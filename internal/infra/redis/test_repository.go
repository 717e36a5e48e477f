package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TestRepository caches test definitions in Redis (hash per test) and falls
// back to a loader on cache miss.
// Definitions are stored as: HSET test:{testID} name .. extension .. config ..
type TestRepository struct {
	client *redis.Client
	loader app.TestRepository
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewTestRepository(client *redis.Client, loader app.TestRepository, ttl time.Duration) *TestRepository {
	return &TestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	key := testKey(testID)
	if fields, err := r.client.HGetAll(ctx, key).Result(); err == nil && len(fields) > 0 {
		return testFromHash(testID, fields), nil
	}

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if fields, err := r.client.HGetAll(ctx, key).Result(); err == nil && len(fields) > 0 {
			return testFromHash(testID, fields), nil
		}

		test, err := r.loader.GetTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		pipe := r.client.TxPipeline()
		pipe.HSet(ctx, key, testToHash(test))
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

// Invalidate removes the cached definition of testID.
func (r *TestRepository) Invalidate(ctx context.Context, testID string) error {
	return r.client.Del(ctx, testKey(testID)).Err()
}

func testKey(testID string) string {
	return "test:" + testID
}

func testToHash(t domain.Test) map[string]interface{} {
	return map[string]interface{}{
		"name":         t.Name,
		"extension":    t.Extension,
		"config":       string(t.Config),
		"answer_count": t.AnswerCount,
		"limit_time":   t.LimitTime,
		"owner_id":     t.OwnerID,
		"created_at":   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"modified_at":  t.ModifiedAt.UTC().Format(time.RFC3339Nano),
	}
}

func testFromHash(testID string, fields map[string]string) domain.Test {
	test := domain.Test{
		ID:        testID,
		Name:      fields["name"],
		Extension: fields["extension"],
		Config:    []byte(fields["config"]),
		OwnerID:   fields["owner_id"],
	}
	test.AnswerCount, _ = strconv.Atoi(fields["answer_count"])
	test.LimitTime, _ = strconv.Atoi(fields["limit_time"])
	test.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	test.ModifiedAt, _ = time.Parse(time.RFC3339Nano, fields["modified_at"])
	return test
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
