package migrations

import (
	"context"

	"github.com/rtm-python/est/internal/infra/bunstore"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if err := createTable(ctx, db, (*bunstore.SessionRow)(nil)); err != nil {
				return err
			}
			return exec(ctx, db,
				`CREATE INDEX IF NOT EXISTS sessions_token_idx ON sessions (token)`,
				`CREATE INDEX IF NOT EXISTS sessions_user_idx ON sessions (user_id)`,
				`CREATE INDEX IF NOT EXISTS sessions_local_at_idx ON sessions (local_at)`,
			)
		},
		func(ctx context.Context, db *bun.DB) error {
			return dropTable(ctx, db, (*bunstore.SessionRow)(nil))
		},
	)
}
