package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/extension"
	"github.com/rtm-python/est/internal/metrics"
	"github.com/rtm-python/est/internal/rating"
	"go.uber.org/zap"
)

// TestRepository is the read path for test definitions (usually cached).
type TestRepository interface {
	GetTest(ctx context.Context, testID string) (domain.Test, error)
}

// TestCache is a TestRepository that can drop stale entries.
type TestCache interface {
	TestRepository
	Invalidate(ctx context.Context, testID string) error
}

// TestCatalog persists test definitions.
type TestCatalog interface {
	TestRepository
	CreateTest(ctx context.Context, test domain.Test) error
	UpdateTest(ctx context.Context, test domain.Test) error
	DeleteTest(ctx context.Context, testID string) error
	ListTests(ctx context.Context, filter domain.TestFilter, page domain.Page) ([]domain.Test, error)
}

// SessionRepository persists sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	// UpdateProgress writes next only if the stored counters still equal prev,
	// otherwise it returns domain.ErrConflict.
	UpdateProgress(ctx context.Context, prev, next domain.Session) error
	// BindAnonymous re-owns at most limit sessions of token to userID and
	// returns how many were moved.
	BindAnonymous(ctx context.Context, userID, token string, limit int) (int, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter, page domain.Page) ([]domain.Session, error)
}

// TaskRepository persists tasks and guards the single open task per session.
type TaskRepository interface {
	// CreateOpenTask returns domain.ErrOpenTaskExists if the session already has one.
	CreateOpenTask(ctx context.Context, sessionID string, payload domain.Payload) (domain.Task, error)
	// ReadOpenTask returns domain.ErrTaskNotFound when the session has no open task.
	ReadOpenTask(ctx context.Context, sessionID string) (domain.Task, error)
	// SubmitAnswer stores answer once and marks correctness against the
	// expected answer. A task that is no longer open yields domain.ErrTaskAnswered.
	SubmitAnswer(ctx context.Context, taskID, answer string) (domain.Task, error)
	// DiscardOpenTask soft-deletes the open task and reports whether there was one.
	DiscardOpenTask(ctx context.Context, sessionID string) (bool, error)
	// ListAnswered returns answered tasks, most recent first.
	ListAnswered(ctx context.Context, sessionID string, page domain.Page) ([]domain.Task, error)
}

// NameRepository persists display names.
type NameRepository interface {
	CreateName(ctx context.Context, name domain.Name) error
	GetName(ctx context.Context, nameID string) (domain.Name, error)
	ListNames(ctx context.Context, userID string) ([]domain.Name, error)
}

// Store groups repositories that can be used inside one transaction.
type Store interface {
	Tests() TestCatalog
	Sessions() SessionRepository
	Tasks() TaskRepository
	Names() NameRepository
	// WithinTx runs fn with a Store whose repositories share a transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Ratings serves leaderboards and chart series.
type Ratings interface {
	TopCrammers(ctx context.Context, q rating.Query) ([]domain.Crammer, error)
	ChartSeries(ctx context.Context, q rating.ChartQuery) ([]domain.ChartPoint, error)
}

// Options tune the service. Zero values pick defaults.
type Options struct {
	Log          *zap.Logger
	Metrics      *metrics.Recorder
	PausePenalty time.Duration
	BindBatch    int
	Now          func() time.Time
}

const defaultBindBatch = 100

// TestingService runs test sessions: starting, playing, pausing, reviewing,
// binding anonymous history and reading ratings.
type TestingService struct {
	store    Store
	tests    TestRepository
	registry *extension.Registry
	ratings  Ratings

	log          *zap.Logger
	metrics      *metrics.Recorder
	pausePenalty time.Duration
	bindBatch    int
	now          func() time.Time
	newID        func() string
}

func NewTestingService(store Store, tests TestRepository, registry *extension.Registry, ratings Ratings, opts Options) *TestingService {
	s := &TestingService{
		store:        store,
		tests:        tests,
		registry:     registry,
		ratings:      ratings,
		log:          opts.Log,
		metrics:      opts.Metrics,
		pausePenalty: opts.PausePenalty,
		bindBatch:    opts.BindBatch,
		now:          opts.Now,
		newID:        uuid.NewString,
	}
	if s.tests == nil {
		s.tests = store.Tests()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.pausePenalty <= 0 {
		s.pausePenalty = domain.PausePenalty
	}
	if s.bindBatch <= 0 {
		s.bindBatch = defaultBindBatch
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// TopCrammers returns a leaderboard page. Results may lag writes by the rating cache TTL.
func (s *TestingService) TopCrammers(ctx context.Context, q rating.Query) ([]domain.Crammer, error) {
	return s.ratings.TopCrammers(ctx, q)
}

// ChartSeries returns per-day points; days without activity are left to the view.
func (s *TestingService) ChartSeries(ctx context.Context, q rating.ChartQuery) ([]domain.ChartPoint, error) {
	return s.ratings.ChartSeries(ctx, q)
}

// Extensions lists the registered extension names.
func (s *TestingService) Extensions() []string {
	return s.registry.Names()
}
