package bunstore

import (
	"time"

	"github.com/rtm-python/est/internal/domain"
	"github.com/uptrace/bun"
)

// TestRow is the tests table.
type TestRow struct {
	bun.BaseModel `bun:"table:tests,alias:t"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Extension   string    `bun:"extension,notnull"`
	Config      string    `bun:"config,type:text,notnull"`
	AnswerCount int       `bun:"answer_count,notnull"`
	LimitTime   int       `bun:"limit_time,notnull"`
	OwnerID     string    `bun:"owner_id,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	ModifiedAt  time.Time `bun:"modified_at,notnull"`
	DeletedAt   time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

// NameRow is the names table.
type NameRow struct {
	bun.BaseModel `bun:"table:names,alias:n"`

	ID         string    `bun:"id,pk"`
	UserID     string    `bun:"user_id,notnull"`
	Value      string    `bun:"value,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	ModifiedAt time.Time `bun:"modified_at,notnull"`
}

// SessionRow is the sessions table. Exactly one of UserID and Token is set
// while the session has an owner.
type SessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID           string `bun:"id,pk"`
	TestID       string `bun:"test_id,notnull"`
	Extension    string `bun:"extension,notnull"`
	TargetCount  int    `bun:"target_count,notnull"`
	UserID       string `bun:"user_id,nullzero"`
	Token        string `bun:"token,nullzero"`
	OriginToken  string `bun:"origin_token,nullzero"`
	NameID       string `bun:"name_id,nullzero"`
	AnswerCount  int    `bun:"answer_count,notnull"`
	CorrectCount int    `bun:"correct_count,notnull"`
	AnswerTime   int    `bun:"answer_time,notnull"`
	LimitTime    int    `bun:"limit_time,notnull"`
	Result       *int   `bun:"result"`
	// LocalAt is the actor's wall clock as unix seconds, compared directly by rating windows.
	LocalAt    int64     `bun:"local_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	ModifiedAt time.Time `bun:"modified_at,notnull"`

	NameValue string `bun:"name_value,scanonly"`
}

// TaskRow is the tasks table. Expected is kept apart from the question so
// correctness can be decided by the update itself.
type TaskRow struct {
	bun.BaseModel `bun:"table:tasks,alias:k"`

	ID         string    `bun:"id,pk"`
	SessionID  string    `bun:"session_id,notnull"`
	Question   string    `bun:"question,type:text,notnull"`
	Expected   string    `bun:"expected,notnull"`
	LimitTime  int       `bun:"limit_time,notnull"`
	Answer     *string   `bun:"answer"`
	Correct    bool      `bun:"correct,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	ModifiedAt time.Time `bun:"modified_at,notnull"`
	DeletedAt  time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

func testRow(t domain.Test) *TestRow {
	return &TestRow{
		ID:          t.ID,
		Name:        t.Name,
		Extension:   t.Extension,
		Config:      string(t.Config),
		AnswerCount: t.AnswerCount,
		LimitTime:   t.LimitTime,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		ModifiedAt:  t.ModifiedAt,
	}
}

func (r TestRow) toDomain() domain.Test {
	return domain.Test{
		ID:          r.ID,
		Name:        r.Name,
		Extension:   r.Extension,
		Config:      []byte(r.Config),
		AnswerCount: r.AnswerCount,
		LimitTime:   r.LimitTime,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
		ModifiedAt:  r.ModifiedAt,
	}
}

func (r NameRow) toDomain() domain.Name {
	return domain.Name{ID: r.ID, UserID: r.UserID, Value: r.Value, CreatedAt: r.CreatedAt, ModifiedAt: r.ModifiedAt}
}

func sessionRow(s domain.Session) *SessionRow {
	row := &SessionRow{
		ID:           s.ID,
		TestID:       s.TestID,
		Extension:    s.Extension,
		TargetCount:  s.TargetCount,
		OriginToken:  s.OriginToken,
		NameID:       s.NameID,
		AnswerCount:  s.AnswerCount,
		CorrectCount: s.CorrectCount,
		AnswerTime:   s.AnswerTime,
		LimitTime:    s.LimitTime,
		Result:       s.Result,
		LocalAt:      s.LocalTime.Unix(),
		CreatedAt:    s.CreatedAt,
		ModifiedAt:   s.ModifiedAt,
	}
	if userID, ok := s.Owner.UserID(); ok {
		row.UserID = userID
	} else if token, ok := s.Owner.Token(); ok {
		row.Token = token
	}
	return row
}

func (r SessionRow) owner() domain.Identity {
	if r.UserID != "" {
		return domain.Authenticated(r.UserID)
	}
	return domain.Anonymous(r.Token)
}

func (r SessionRow) toDomain() domain.Session {
	return domain.Session{
		ID:           r.ID,
		TestID:       r.TestID,
		Extension:    r.Extension,
		TargetCount:  r.TargetCount,
		Owner:        r.owner(),
		OriginToken:  r.OriginToken,
		NameID:       r.NameID,
		AnswerCount:  r.AnswerCount,
		CorrectCount: r.CorrectCount,
		AnswerTime:   r.AnswerTime,
		LimitTime:    r.LimitTime,
		Result:       r.Result,
		LocalTime:    time.Unix(r.LocalAt, 0).UTC(),
		CreatedAt:    r.CreatedAt,
		ModifiedAt:   r.ModifiedAt,
	}
}

func (r TaskRow) toDomain() domain.Task {
	return domain.Task{
		ID:        r.ID,
		SessionID: r.SessionID,
		Payload: domain.Payload{
			Question:  []byte(r.Question),
			Answer:    r.Expected,
			LimitTime: r.LimitTime,
		},
		Answer:     r.Answer,
		Correct:    r.Correct,
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
}
