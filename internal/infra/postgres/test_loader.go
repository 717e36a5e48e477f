package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rtm-python/est/internal/domain"
)

// TestLoader reads test definitions straight from Postgres. It feeds the
// catalog caches, which only ever need a lookup by id.
type TestLoader struct {
	pool *pgxpool.Pool
}

func NewTestLoader(pool *pgxpool.Pool) *TestLoader {
	return &TestLoader{pool: pool}
}

func (l *TestLoader) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	var (
		test    domain.Test
		config  string
		ownerID *string
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, name, extension, config, answer_count, limit_time, owner_id, created_at, modified_at
		FROM tests WHERE id=$1 AND deleted_at IS NULL`, testID).
		Scan(&test.ID, &test.Name, &test.Extension, &config, &test.AnswerCount, &test.LimitTime,
			&ownerID, &test.CreatedAt, &test.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Test{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.Test{}, fmt.Errorf("load test: %w", err)
	}
	test.Config = []byte(config)
	if ownerID != nil {
		test.OwnerID = *ownerID
	}
	return test, nil
}
