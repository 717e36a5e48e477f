package bunstore_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/extension"
	"github.com/rtm-python/est/internal/infra/bunstore"
	"github.com/rtm-python/est/internal/rating"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T, answerCount int) (*app.TestingService, *bunstore.Store, domain.Test) {
	t.Helper()
	store, now := openStore(t)
	registry := extension.NewRegistry(extension.NewArithmetic(rand.New(rand.NewSource(7))))
	service := app.NewTestingService(store, nil, registry, rating.NewEngine(store), app.Options{
		Log:       zaptest.NewLogger(t),
		BindBatch: 1,
		Now:       func() time.Time { return *now },
	})
	test, err := service.CreateTest(context.Background(), domain.Test{
		Name:        "Sums",
		Extension:   "arithmetic",
		Config:      []byte(`{"max_limit":20,"vars_count":2,"operations":["addition"]}`),
		AnswerCount: answerCount,
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return service, store, test
}

func TestServicePlaysAnonymousSession(t *testing.T) {
	ctx := context.Background()
	service, _, test := newService(t, 2)
	visitor := domain.Actor{Identity: domain.Anonymous("visitor-token")}

	session, err := service.StartSession(ctx, test.ID, visitor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for {
		state, err := service.OpenState(ctx, session.ID, visitor)
		if err != nil {
			t.Fatalf("anonymous creator cannot open its own session: %v", err)
		}
		if state.Complete() {
			break
		}
		outcome, err := service.SubmitAnswer(ctx, session.ID, state.Task.ID, visitor,
			extension.Input{"answer": state.Task.Payload.Answer})
		if err != nil || !outcome.Accepted || !outcome.Correct {
			t.Fatalf("submit: %+v %v", outcome, err)
		}
	}

	done, history, err := service.Result(ctx, session.ID, visitor)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if done.AnswerCount != 2 || done.CorrectCount != 2 || len(history) != 2 {
		t.Fatalf("unexpected result %+v with %d tasks", done, len(history))
	}

	crammers, err := service.TopCrammers(ctx, rating.Query{})
	if err != nil || len(crammers) != 1 || crammers[0].Key != "anon:visitor-token" {
		t.Fatalf("expected one anonymous crammer, got %+v %v", crammers, err)
	}

	bound, err := service.BindIdentity(ctx, "u1", "visitor-token")
	if err != nil || bound != 1 {
		t.Fatalf("bind: %d %v", bound, err)
	}
	if _, _, err := service.Result(ctx, session.ID, domain.Actor{Identity: domain.Authenticated("u1")}); err != nil {
		t.Fatalf("bound user should read the result: %v", err)
	}
	if _, _, err := service.Result(ctx, session.ID, visitor); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for the old token, got %v", err)
	}
}

func TestConcurrentSubmitsCountOnce(t *testing.T) {
	ctx := context.Background()
	service, store, test := newService(t, 3)
	visitor := domain.Actor{Identity: domain.Anonymous("tok")}

	session, err := service.StartSession(ctx, test.ID, visitor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	state, err := service.OpenState(ctx, session.ID, visitor)
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	input := extension.Input{"answer": state.Task.Payload.Answer}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	accepted := make([]bool, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := service.SubmitAnswer(ctx, session.ID, state.Task.ID, visitor, input)
			errs[i], accepted[i] = err, outcome.Accepted
		}(i)
	}
	wg.Wait()

	wins, stale := 0, 0
	for i, err := range errs {
		switch {
		case err == nil && accepted[i]:
			wins++
		case errors.Is(err, domain.ErrTaskAnswered):
			stale++
		default:
			t.Fatalf("unexpected submit result: accepted=%v err=%v", accepted[i], err)
		}
	}
	if wins != 1 || stale != 1 {
		t.Fatalf("expected one accepted and one stale submit, got %d and %d", wins, stale)
	}

	got, err := store.Sessions().GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.AnswerCount != 1 || got.CorrectCount != 1 {
		t.Fatalf("expected the answer counted once, got %+v", got)
	}
}
