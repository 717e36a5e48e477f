package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rtm-python/est/internal/domain"
)

func TestTestCacheCaches(t *testing.T) {
	loader := &countingLoader{tests: map[string]domain.Test{"test-1": sampleTest()}}
	cache := NewTestCache(loader, time.Minute)

	if _, err := cache.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}
	if _, err := cache.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestTestCacheExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{tests: map[string]domain.Test{"test-1": sampleTest()}}
	cache := NewTestCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	if _, err := cache.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test after ttl: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}

	if err := cache.Invalidate(context.Background(), "test-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test after invalidate: %v", err)
	}
	if loader.calls != 3 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestTestCacheDoesNotCacheMisses(t *testing.T) {
	loader := &countingLoader{tests: map[string]domain.Test{}}
	cache := NewTestCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetTest(context.Background(), "missing"); !errors.Is(err, domain.ErrTestNotFound) {
			t.Fatalf("expected ErrTestNotFound, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected misses to reach loader, calls %d", loader.calls)
	}
}

type countingLoader struct {
	tests map[string]domain.Test
	calls int
}

func (l *countingLoader) GetTest(_ context.Context, testID string) (domain.Test, error) {
	l.calls++
	if test, ok := l.tests[testID]; ok {
		return test, nil
	}
	return domain.Test{}, domain.ErrTestNotFound
}

func sampleTest() domain.Test {
	return domain.Test{
		ID:          "test-1",
		Name:        "Addition",
		Extension:   "arithmetic",
		Config:      []byte(`{"max_limit":10,"vars_count":2,"result_only":true,"operations":["addition"]}`),
		AnswerCount: 3,
	}
}
