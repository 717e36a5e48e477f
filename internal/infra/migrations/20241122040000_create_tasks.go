package migrations

import (
	"context"

	"github.com/rtm-python/est/internal/infra/bunstore"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if err := createTable(ctx, db, (*bunstore.TaskRow)(nil)); err != nil {
				return err
			}
			// at most one open task per session
			return exec(ctx, db,
				`CREATE UNIQUE INDEX IF NOT EXISTS tasks_open_idx ON tasks (session_id) WHERE answer IS NULL AND deleted_at IS NULL`,
				`CREATE INDEX IF NOT EXISTS tasks_session_idx ON tasks (session_id, modified_at)`,
			)
		},
		func(ctx context.Context, db *bun.DB) error {
			return dropTable(ctx, db, (*bunstore.TaskRow)(nil))
		},
	)
}
