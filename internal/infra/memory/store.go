package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
)

// Store is an in-memory implementation of app.Store, used for tests and
// single-process demos. WithinTx serializes transactions and, when fn fails,
// restores only the records the transaction wrote.
type Store struct {
	*core
	undo *undoLog
}

type core struct {
	clock func() time.Time
	newID func() string

	txMu sync.Mutex
	mu   sync.RWMutex
	data state
}

type state struct {
	tests    map[string]testRecord
	sessions map[string]domain.Session
	tasks    map[string]taskRecord
	names    map[string]domain.Name
}

type testRecord struct {
	test    domain.Test
	deleted bool
}

type taskRecord struct {
	task    domain.Task
	deleted bool
}

// undoLog keeps the first prior value of every record written inside a transaction.
type undoLog struct {
	seen  map[string]bool
	steps []func()
}

// track must be called with mu held, before the record is written.
func track[V any](u *undoLog, m map[string]V, kind, key string) {
	if u == nil || u.seen[kind+"/"+key] {
		return
	}
	u.seen[kind+"/"+key] = true
	prev, existed := m[key]
	u.steps = append(u.steps, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is used by tests that need deterministic timestamps.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{core: &core{
		clock: now,
		newID: uuid.NewString,
		data: state{
			tests:    make(map[string]testRecord),
			sessions: make(map[string]domain.Session),
			tasks:    make(map[string]taskRecord),
			names:    make(map[string]domain.Name),
		},
	}}
}

func (s *Store) Tests() app.TestCatalog          { return testRepo{s} }
func (s *Store) Sessions() app.SessionRepository { return sessionRepo{s} }
func (s *Store) Tasks() app.TaskRepository       { return taskRepo{s} }
func (s *Store) Names() app.NameRepository       { return nameRepo{s} }

// WithinTx runs fn against a view of the store that journals its writes.
// Nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	if s.undo != nil {
		return fn(ctx, s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &Store{core: s.core, undo: &undoLog{seen: make(map[string]bool)}}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		for i := len(tx.undo.steps) - 1; i >= 0; i-- {
			tx.undo.steps[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// ListActivity implements rating.Source.
func (s *Store) ListActivity(_ context.Context, filter rating.Filter) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Activity
	for _, session := range s.data.sessions {
		activity := session.Activity(s.data.names[session.NameID].Value)
		if filter.Matches(activity) {
			out = append(out, activity)
		}
	}
	return out, nil
}

type testRepo struct{ s *Store }

func (r testRepo) GetTest(_ context.Context, testID string) (domain.Test, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.data.tests[testID]
	if !ok || rec.deleted {
		return domain.Test{}, domain.ErrTestNotFound
	}
	return rec.test, nil
}

func (r testRepo) CreateTest(_ context.Context, test domain.Test) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	track(r.s.undo, r.s.data.tests, "test", test.ID)
	r.s.data.tests[test.ID] = testRecord{test: test}
	return nil
}

func (r testRepo) UpdateTest(_ context.Context, test domain.Test) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.data.tests[test.ID]
	if !ok || rec.deleted {
		return domain.ErrTestNotFound
	}
	track(r.s.undo, r.s.data.tests, "test", test.ID)
	r.s.data.tests[test.ID] = testRecord{test: test}
	return nil
}

func (r testRepo) DeleteTest(_ context.Context, testID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.data.tests[testID]
	if !ok || rec.deleted {
		return domain.ErrTestNotFound
	}
	track(r.s.undo, r.s.data.tests, "test", testID)
	rec.deleted = true
	r.s.data.tests[testID] = rec
	return nil
}

func (r testRepo) ListTests(_ context.Context, filter domain.TestFilter, page domain.Page) ([]domain.Test, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Test
	for _, rec := range r.s.data.tests {
		t := rec.test
		if rec.deleted ||
			(filter.Extension != "" && t.Extension != filter.Extension) ||
			(filter.OwnerID != "" && t.OwnerID != filter.OwnerID) ||
			(filter.Name != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(filter.Name))) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].ID < out[j].ID
	})
	return window(out, page), nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) CreateSession(_ context.Context, session domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	track(r.s.undo, r.s.data.sessions, "session", session.ID)
	r.s.data.sessions[session.ID] = session
	return nil
}

func (r sessionRepo) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.data.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r sessionRepo) UpdateProgress(_ context.Context, prev, next domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.sessions[prev.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if stored.AnswerCount != prev.AnswerCount || stored.AnswerTime != prev.AnswerTime {
		return domain.ErrConflict
	}
	next.Owner = stored.Owner
	next.ModifiedAt = r.s.clock()
	track(r.s.undo, r.s.data.sessions, "session", prev.ID)
	r.s.data.sessions[prev.ID] = next
	return nil
}

func (r sessionRepo) BindAnonymous(_ context.Context, userID, token string, limit int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	owner := domain.Anonymous(token)
	var ids []string
	for id, session := range r.s.data.sessions {
		if session.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	now := r.s.clock()
	for _, id := range ids {
		track(r.s.undo, r.s.data.sessions, "session", id)
		session := r.s.data.sessions[id]
		session.Owner = domain.Authenticated(userID)
		session.ModifiedAt = now
		r.s.data.sessions[id] = session
	}
	return len(ids), nil
}

func (r sessionRepo) ListSessions(_ context.Context, filter domain.SessionFilter, page domain.Page) ([]domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Session
	for _, session := range r.s.data.sessions {
		if (filter.TestID != "" && session.TestID != filter.TestID) ||
			(!filter.Owner.IsZero() && session.Owner != filter.Owner) ||
			(filter.NameID != "" && session.NameID != filter.NameID) ||
			(filter.HideCompleted && session.Complete()) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].ID < out[j].ID
	})
	return window(out, page), nil
}

type taskRepo struct{ s *Store }

func (r taskRepo) CreateOpenTask(_ context.Context, sessionID string, payload domain.Payload) (domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.sessions[sessionID]; !ok {
		return domain.Task{}, domain.ErrSessionNotFound
	}
	if _, ok := r.s.openLocked(sessionID); ok {
		return domain.Task{}, domain.ErrOpenTaskExists
	}
	now := r.s.clock()
	task := domain.Task{
		ID:         r.s.newID(),
		SessionID:  sessionID,
		Payload:    payload,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	track(r.s.undo, r.s.data.tasks, "task", task.ID)
	r.s.data.tasks[task.ID] = taskRecord{task: task}
	return task, nil
}

func (r taskRepo) ReadOpenTask(_ context.Context, sessionID string) (domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	task, ok := r.s.openLocked(sessionID)
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return task, nil
}

func (r taskRepo) SubmitAnswer(_ context.Context, taskID, answer string) (domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.data.tasks[taskID]
	if !ok || rec.deleted {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if !rec.task.Open() {
		return domain.Task{}, domain.ErrTaskAnswered
	}
	rec.task.Answer = &answer
	rec.task.Correct = answer == rec.task.Payload.Answer
	rec.task.ModifiedAt = r.s.clock()
	track(r.s.undo, r.s.data.tasks, "task", taskID)
	r.s.data.tasks[taskID] = rec
	return rec.task, nil
}

func (r taskRepo) DiscardOpenTask(_ context.Context, sessionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.openLocked(sessionID)
	if !ok {
		return false, nil
	}
	task.ModifiedAt = r.s.clock()
	track(r.s.undo, r.s.data.tasks, "task", task.ID)
	r.s.data.tasks[task.ID] = taskRecord{task: task, deleted: true}
	return true, nil
}

func (r taskRepo) ListAnswered(_ context.Context, sessionID string, page domain.Page) ([]domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Task
	for _, rec := range r.s.data.tasks {
		if rec.deleted || rec.task.SessionID != sessionID || rec.task.Open() {
			continue
		}
		out = append(out, rec.task)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, page), nil
}

func (s *Store) openLocked(sessionID string) (domain.Task, bool) {
	for _, rec := range s.data.tasks {
		if !rec.deleted && rec.task.SessionID == sessionID && rec.task.Open() {
			return rec.task, true
		}
	}
	return domain.Task{}, false
}

type nameRepo struct{ s *Store }

func (r nameRepo) CreateName(_ context.Context, name domain.Name) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	track(r.s.undo, r.s.data.names, "name", name.ID)
	r.s.data.names[name.ID] = name
	return nil
}

func (r nameRepo) GetName(_ context.Context, nameID string) (domain.Name, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	name, ok := r.s.data.names[nameID]
	if !ok {
		return domain.Name{}, domain.ErrNameNotFound
	}
	return name, nil
}

func (r nameRepo) ListNames(_ context.Context, userID string) ([]domain.Name, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Name
	for _, name := range r.s.data.names {
		if name.UserID == userID {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func window[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	if page.Offset > 0 {
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
