package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })
	return store, &now
}

func seedSession(t *testing.T, store *Store, id string, owner domain.Identity) domain.Session {
	t.Helper()
	session := domain.NewSession(id, domain.Test{ID: "test-1", Extension: "arithmetic", AnswerCount: 2},
		domain.Actor{Identity: owner}, store.clock())
	if err := store.Sessions().CreateSession(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestStoreKeepsOneOpenTask(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)
	seedSession(t, store, "s1", domain.Anonymous("tok"))

	task, err := store.Tasks().CreateOpenTask(ctx, "s1", domain.Payload{Answer: "4", LimitTime: 3})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := store.Tasks().CreateOpenTask(ctx, "s1", domain.Payload{Answer: "5"}); !errors.Is(err, domain.ErrOpenTaskExists) {
		t.Fatalf("expected ErrOpenTaskExists, got %v", err)
	}

	*now = now.Add(4 * time.Second)
	answered, err := store.Tasks().SubmitAnswer(ctx, task.ID, "4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !answered.Correct || answered.Elapsed() != 4 {
		t.Fatalf("unexpected answered task: %+v", answered)
	}
	if _, err := store.Tasks().SubmitAnswer(ctx, task.ID, "5"); !errors.Is(err, domain.ErrTaskAnswered) {
		t.Fatalf("expected ErrTaskAnswered, got %v", err)
	}
	if _, err := store.Tasks().ReadOpenTask(ctx, "s1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected no open task, got %v", err)
	}
	if _, err := store.Tasks().CreateOpenTask(ctx, "s1", domain.Payload{Answer: "6"}); err != nil {
		t.Fatalf("create second task: %v", err)
	}
}

func TestStoreDiscardHidesTask(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	seedSession(t, store, "s1", domain.Anonymous("tok"))

	task, err := store.Tasks().CreateOpenTask(ctx, "s1", domain.Payload{Answer: "1"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	discarded, err := store.Tasks().DiscardOpenTask(ctx, "s1")
	if err != nil || !discarded {
		t.Fatalf("discard: %v %v", discarded, err)
	}
	if _, err := store.Tasks().SubmitAnswer(ctx, task.ID, "1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected discarded task to be gone, got %v", err)
	}
	discarded, err = store.Tasks().DiscardOpenTask(ctx, "s1")
	if err != nil || discarded {
		t.Fatalf("second discard should be a no-op: %v %v", discarded, err)
	}
	tasks, err := store.Tasks().ListAnswered(ctx, "s1", domain.Page{})
	if err != nil || len(tasks) != 0 {
		t.Fatalf("expected no answered tasks, got %d %v", len(tasks), err)
	}
}

func TestStoreUpdateProgressDetectsConflict(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	session := seedSession(t, store, "s1", domain.Anonymous("tok"))

	next := session
	next.AnswerCount = 1
	if err := store.Sessions().UpdateProgress(ctx, session, next); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale := session
	stale.AnswerCount = 1
	if err := store.Sessions().UpdateProgress(ctx, session, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestStoreWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	seedSession(t, store, "s1", domain.Anonymous("tok"))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx app.Store) error {
		if _, err := tx.Tasks().CreateOpenTask(ctx, "s1", domain.Payload{Answer: "1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.Tasks().ReadOpenTask(ctx, "s1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestStoreFailedTxKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	seedSession(t, store, "s1", domain.Anonymous("tok"))

	boom := errors.New("boom")
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithinTx(ctx, func(ctx context.Context, tx app.Store) error {
			if _, err := tx.Tasks().CreateOpenTask(ctx, "s1", domain.Payload{Answer: "1"}); err != nil {
				return err
			}
			close(entered)
			<-release
			return boom
		})
	}()

	<-entered
	seedSession(t, store, "other", domain.Anonymous("visitor"))
	close(release)
	if err := <-done; !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := store.Sessions().GetSession(ctx, "other"); err != nil {
		t.Fatalf("session written outside the failed tx was lost: %v", err)
	}
	if _, err := store.Tasks().ReadOpenTask(ctx, "s1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected task created in the tx to be rolled back, got %v", err)
	}
}

func TestStoreListTestsByLastModified(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)
	created := *now
	for _, name := range []string{"Alpha", "Zulu"} {
		test := domain.Test{ID: name, Name: name, Extension: "arithmetic", AnswerCount: 1, CreatedAt: created, ModifiedAt: created}
		if err := store.Tests().CreateTest(ctx, test); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	zulu, err := store.Tests().GetTest(ctx, "Zulu")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	zulu.ModifiedAt = created.Add(time.Minute)
	if err := store.Tests().UpdateTest(ctx, zulu); err != nil {
		t.Fatalf("update: %v", err)
	}

	listed, err := store.Tests().ListTests(ctx, domain.TestFilter{}, domain.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "Zulu" || listed[1].Name != "Alpha" {
		t.Fatalf("expected most recently modified first, got %+v", listed)
	}
}

func TestStoreBindAnonymousInBatches(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		seedSession(t, store, id, domain.Anonymous("tok"))
	}
	seedSession(t, store, "other", domain.Anonymous("someone-else"))

	moved, err := store.Sessions().BindAnonymous(ctx, "u1", "tok", 2)
	if err != nil || moved != 2 {
		t.Fatalf("first batch: %d %v", moved, err)
	}
	moved, err = store.Sessions().BindAnonymous(ctx, "u1", "tok", 2)
	if err != nil || moved != 1 {
		t.Fatalf("second batch: %d %v", moved, err)
	}

	owned, err := store.Sessions().ListSessions(ctx, domain.SessionFilter{Owner: domain.Authenticated("u1")}, domain.Page{})
	if err != nil || len(owned) != 3 {
		t.Fatalf("expected 3 bound sessions, got %d %v", len(owned), err)
	}
	for _, session := range owned {
		if session.OriginToken != "tok" {
			t.Fatalf("origin token lost on %s", session.ID)
		}
	}
	other, _ := store.Sessions().GetSession(ctx, "other")
	if other.Owner != domain.Anonymous("someone-else") {
		t.Fatalf("foreign session rebound: %v", other.Owner)
	}
}

func TestStoreListActivity(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	if err := store.Names().CreateName(ctx, domain.Name{ID: "n1", UserID: "u1", Value: "Ann"}); err != nil {
		t.Fatalf("create name: %v", err)
	}
	played := seedSession(t, store, "s1", domain.Authenticated("u1"))
	played.NameID = "n1"
	next := played
	next.AnswerCount, next.CorrectCount, next.AnswerTime, next.LimitTime = 1, 1, 5, 3
	if err := store.Sessions().CreateSession(ctx, played); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if err := store.Sessions().UpdateProgress(ctx, played, next); err != nil {
		t.Fatalf("update: %v", err)
	}
	seedSession(t, store, "idle", domain.Anonymous("tok"))

	activity, err := store.ListActivity(ctx, rating.Filter{})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(activity) != 1 || activity[0].NameValue != "Ann" {
		t.Fatalf("expected one named row, got %+v", activity)
	}
}
