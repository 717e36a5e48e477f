package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
	"github.com/uptrace/bun"
)

// Store implements app.Store on top of bun.
type Store struct {
	db    bun.IDB
	root  *bun.DB
	clock func() time.Time
	newID func() string
}

func NewStore(db *bun.DB) *Store {
	return NewStoreWithClock(db, time.Now)
}

// NewStoreWithClock is used by tests that need deterministic timestamps.
func NewStoreWithClock(db *bun.DB, now func() time.Time) *Store {
	return &Store{db: db, root: db, clock: now, newID: uuid.NewString}
}

func (s *Store) Tests() app.TestCatalog          { return testRepo{s} }
func (s *Store) Sessions() app.SessionRepository { return sessionRepo{s} }
func (s *Store) Tasks() app.TaskRepository       { return taskRepo{s} }
func (s *Store) Names() app.NameRepository       { return nameRepo{s} }

// WithinTx runs fn in a transaction. Nested calls reuse the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	if _, ok := s.db.(bun.Tx); ok {
		return fn(ctx, s)
	}
	return s.root.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx, root: s.root, clock: s.clock, newID: s.newID})
	})
}

// ListActivity implements rating.Source.
func (s *Store) ListActivity(ctx context.Context, filter rating.Filter) ([]domain.Activity, error) {
	var rows []SessionRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("s.*").
		ColumnExpr("n.value AS name_value").
		Join("LEFT JOIN names AS n ON n.id = s.name_id").
		Where("s.answer_count > 0")
	if filter.Extension != "" {
		q = q.Where("s.extension = ?", filter.Extension)
	}
	q = whereOwner(q, "s.", filter.Owner)
	if !filter.Window.Since.IsZero() {
		q = q.Where("s.local_at >= ?", filter.Window.Since.Unix())
	}
	if !filter.Window.Until.IsZero() {
		q = q.Where("s.local_at < ?", filter.Window.Until.Unix())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain().Activity(row.NameValue))
	}
	return out, nil
}

func whereOwner(q *bun.SelectQuery, prefix string, owner domain.Identity) *bun.SelectQuery {
	if userID, ok := owner.UserID(); ok {
		return q.Where(prefix+"user_id = ?", userID)
	}
	if token, ok := owner.Token(); ok {
		return q.Where(prefix+"token = ?", token)
	}
	return q
}

func paged(q *bun.SelectQuery, page domain.Page) *bun.SelectQuery {
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	return q
}

type testRepo struct{ s *Store }

func (r testRepo) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	var row TestRow
	err := r.s.db.NewSelect().Model(&row).Where("t.id = ?", testID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Test{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.Test{}, err
	}
	return row.toDomain(), nil
}

func (r testRepo) CreateTest(ctx context.Context, test domain.Test) error {
	_, err := r.s.db.NewInsert().Model(testRow(test)).Exec(ctx)
	return err
}

func (r testRepo) UpdateTest(ctx context.Context, test domain.Test) error {
	res, err := r.s.db.NewUpdate().
		Model(testRow(test)).
		Column("name", "extension", "config", "answer_count", "limit_time", "modified_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrTestNotFound)
}

func (r testRepo) DeleteTest(ctx context.Context, testID string) error {
	res, err := r.s.db.NewDelete().Model((*TestRow)(nil)).Where("id = ?", testID).Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrTestNotFound)
}

func (r testRepo) ListTests(ctx context.Context, filter domain.TestFilter, page domain.Page) ([]domain.Test, error) {
	var rows []TestRow
	q := r.s.db.NewSelect().Model(&rows).OrderExpr("t.modified_at DESC, t.id ASC")
	if filter.Name != "" {
		q = q.Where("LOWER(t.name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.Extension != "" {
		q = q.Where("t.extension = ?", filter.Extension)
	}
	if filter.OwnerID != "" {
		q = q.Where("t.owner_id = ?", filter.OwnerID)
	}
	if err := paged(q, page).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Test, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := r.s.db.NewInsert().Model(sessionRow(session)).Exec(ctx)
	return err
}

func (r sessionRepo) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var row SessionRow
	err := r.s.db.NewSelect().Model(&row).Where("s.id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	return row.toDomain(), nil
}

// UpdateProgress only touches progress columns so a concurrent bind keeps its owner.
func (r sessionRepo) UpdateProgress(ctx context.Context, prev, next domain.Session) error {
	res, err := r.s.db.NewUpdate().
		Model((*SessionRow)(nil)).
		Set("answer_count = ?", next.AnswerCount).
		Set("correct_count = ?", next.CorrectCount).
		Set("answer_time = ?", next.AnswerTime).
		Set("limit_time = ?", next.LimitTime).
		Set("result = ?", next.Result).
		Set("local_at = ?", next.LocalTime.Unix()).
		Set("modified_at = ?", r.s.clock()).
		Where("id = ?", prev.ID).
		Where("answer_count = ?", prev.AnswerCount).
		Where("answer_time = ?", prev.AnswerTime).
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := expectRow(res, domain.ErrConflict); err != nil {
		if _, getErr := r.GetSession(ctx, prev.ID); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

func (r sessionRepo) BindAnonymous(ctx context.Context, userID, token string, limit int) (int, error) {
	var ids []string
	q := r.s.db.NewSelect().Model((*SessionRow)(nil)).Column("id").Where("token = ?", token).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.s.db.NewUpdate().
		Model((*SessionRow)(nil)).
		Set("user_id = ?", userID).
		Set("token = NULL").
		Set("modified_at = ?", r.s.clock()).
		Where("id IN (?)", bun.In(ids)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r sessionRepo) ListSessions(ctx context.Context, filter domain.SessionFilter, page domain.Page) ([]domain.Session, error) {
	var rows []SessionRow
	q := r.s.db.NewSelect().Model(&rows).OrderExpr("s.modified_at DESC, s.id ASC")
	if filter.TestID != "" {
		q = q.Where("s.test_id = ?", filter.TestID)
	}
	if filter.NameID != "" {
		q = q.Where("s.name_id = ?", filter.NameID)
	}
	if filter.HideCompleted {
		q = q.Where("s.answer_count < s.target_count")
	}
	q = whereOwner(q, "s.", filter.Owner)
	if err := paged(q, page).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type taskRepo struct{ s *Store }

func (r taskRepo) CreateOpenTask(ctx context.Context, sessionID string, payload domain.Payload) (domain.Task, error) {
	now := r.s.clock()
	row := &TaskRow{
		ID:         r.s.newID(),
		SessionID:  sessionID,
		Question:   string(payload.Question),
		Expected:   payload.Answer,
		LimitTime:  payload.LimitTime,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if _, err := r.s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Task{}, domain.ErrOpenTaskExists
		}
		return domain.Task{}, err
	}
	return row.toDomain(), nil
}

func (r taskRepo) ReadOpenTask(ctx context.Context, sessionID string) (domain.Task, error) {
	var row TaskRow
	err := r.s.db.NewSelect().Model(&row).
		Where("k.session_id = ?", sessionID).
		Where("k.answer IS NULL").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	return row.toDomain(), nil
}

func (r taskRepo) SubmitAnswer(ctx context.Context, taskID, answer string) (domain.Task, error) {
	var row TaskRow
	err := r.s.db.NewSelect().Model(&row).Where("k.id = ?", taskID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	if row.Answer != nil {
		return domain.Task{}, domain.ErrTaskAnswered
	}

	now := r.s.clock()
	res, err := r.s.db.NewUpdate().
		Model((*TaskRow)(nil)).
		Set("answer = ?", answer).
		Set("correct = (expected = ?)", answer).
		Set("modified_at = ?", now).
		Where("id = ?", taskID).
		Where("answer IS NULL").
		Exec(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if err := expectRow(res, domain.ErrTaskAnswered); err != nil {
		return domain.Task{}, err
	}
	row.Answer = &answer
	row.Correct = answer == row.Expected
	row.ModifiedAt = now
	return row.toDomain(), nil
}

func (r taskRepo) DiscardOpenTask(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.s.db.NewDelete().
		Model((*TaskRow)(nil)).
		Where("session_id = ?", sessionID).
		Where("answer IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r taskRepo) ListAnswered(ctx context.Context, sessionID string, page domain.Page) ([]domain.Task, error) {
	var rows []TaskRow
	q := r.s.db.NewSelect().Model(&rows).
		Where("k.session_id = ?", sessionID).
		Where("k.answer IS NOT NULL").
		OrderExpr("k.modified_at DESC, k.created_at DESC")
	if err := paged(q, page).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type nameRepo struct{ s *Store }

func (r nameRepo) CreateName(ctx context.Context, name domain.Name) error {
	_, err := r.s.db.NewInsert().Model(&NameRow{
		ID:         name.ID,
		UserID:     name.UserID,
		Value:      name.Value,
		CreatedAt:  name.CreatedAt,
		ModifiedAt: name.ModifiedAt,
	}).Exec(ctx)
	return err
}

func (r nameRepo) GetName(ctx context.Context, nameID string) (domain.Name, error) {
	var row NameRow
	err := r.s.db.NewSelect().Model(&row).Where("n.id = ?", nameID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Name{}, domain.ErrNameNotFound
	}
	if err != nil {
		return domain.Name{}, err
	}
	return row.toDomain(), nil
}

func (r nameRepo) ListNames(ctx context.Context, userID string) ([]domain.Name, error) {
	var rows []NameRow
	if err := r.s.db.NewSelect().Model(&rows).Where("n.user_id = ?", userID).Order("n.value").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Name, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func expectRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
