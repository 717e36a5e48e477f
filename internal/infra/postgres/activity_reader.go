package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
)

// ActivityReader serves rating.Source from a Postgres connection, usually a
// read replica, so leaderboards do not load the primary.
type ActivityReader struct {
	pool *pgxpool.Pool
}

func NewActivityReader(pool *pgxpool.Pool) *ActivityReader {
	return &ActivityReader{pool: pool}
}

func (r *ActivityReader) ListActivity(ctx context.Context, filter rating.Filter) ([]domain.Activity, error) {
	query, args := activityQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var (
			a                     domain.Activity
			userID, token, nameID *string
			nameValue             *string
			targetCount           int
			localAt               int64
		)
		if err := rows.Scan(&a.SessionID, &userID, &token, &nameID, &nameValue, &a.Extension,
			&targetCount, &a.AnswerCount, &a.CorrectCount, &a.AnswerTime, &a.LimitTime, &localAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		switch {
		case userID != nil:
			a.Owner = domain.Authenticated(*userID)
		case token != nil:
			a.Owner = domain.Anonymous(*token)
		}
		if nameID != nil {
			a.NameID = *nameID
		}
		if nameValue != nil {
			a.NameValue = *nameValue
		}
		a.Complete = a.AnswerCount >= targetCount
		a.LocalTime = time.Unix(localAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func activityQuery(filter rating.Filter) (string, []interface{}) {
	var (
		where = []string{"s.answer_count > 0"}
		args  []interface{}
	)
	arg := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Extension != "" {
		arg("s.extension = $%d", filter.Extension)
	}
	if userID, ok := filter.Owner.UserID(); ok {
		arg("s.user_id = $%d", userID)
	} else if token, ok := filter.Owner.Token(); ok {
		arg("s.token = $%d", token)
	}
	if !filter.Window.Since.IsZero() {
		arg("s.local_at >= $%d", filter.Window.Since.Unix())
	}
	if !filter.Window.Until.IsZero() {
		arg("s.local_at < $%d", filter.Window.Until.Unix())
	}
	query := `
		SELECT s.id, s.user_id, s.token, s.name_id, n.value, s.extension,
			s.target_count, s.answer_count, s.correct_count, s.answer_time, s.limit_time, s.local_at
		FROM sessions s
		LEFT JOIN names n ON n.id = s.name_id
		WHERE ` + strings.Join(where, " AND ")
	return query, args
}
