package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/extension"
	"github.com/rtm-python/est/internal/infra/memory"
	"github.com/rtm-python/est/internal/rating"
	"go.uber.org/zap"
)

// newTestServer serves the full router over an in-memory store with one
// arithmetic test that asks a single question.
func newTestServer(t *testing.T, answerCount int) (*httptest.Server, *app.TestingService, domain.Test) {
	t.Helper()
	store := memory.NewStore()
	service := app.NewTestingService(store, memory.NewTestCache(store.Tests(), time.Minute),
		extension.Default(), rating.NewEngine(store), app.Options{})
	test, err := service.CreateTest(context.Background(), domain.Test{
		Name:        "Sums",
		Extension:   "arithmetic",
		Config:      []byte(`{"max_limit":9,"vars_count":2,"result_only":true,"operations":["addition"]}`),
		AnswerCount: answerCount,
		OwnerID:     "owner",
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	server := httptest.NewServer(NewRouter(service, zap.NewNop(), nil))
	t.Cleanup(server.Close)
	return server, service, test
}
