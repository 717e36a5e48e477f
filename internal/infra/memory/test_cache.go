package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TestCache keeps test definitions in process memory with a TTL so the play
// path does not hit the database for every task.
type TestCache struct {
	loader app.TestRepository
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedTest
}

type cachedTest struct {
	test      domain.Test
	expiresAt time.Time
}

func NewTestCache(loader app.TestRepository, ttl time.Duration) *TestCache {
	return &TestCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTest),
	}
}

func (c *TestCache) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	if test, ok := c.lookup(testID); ok {
		return test, nil
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		if test, ok := c.lookup(testID); ok {
			return test, nil
		}
		test, err := c.loader.GetTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}
		c.mu.Lock()
		c.cache[testID] = cachedTest{test: test, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

// Invalidate drops the cached copy of testID.
func (c *TestCache) Invalidate(_ context.Context, testID string) error {
	c.mu.Lock()
	delete(c.cache, testID)
	c.mu.Unlock()
	return nil
}

func (c *TestCache) lookup(testID string) (domain.Test, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[testID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Test{}, false
	}
	return entry.test, true
}

func (c *TestCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
