package migrations

import (
	"context"

	"github.com/rtm-python/est/internal/infra/bunstore"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if err := createTable(ctx, db, (*bunstore.NameRow)(nil)); err != nil {
				return err
			}
			return exec(ctx, db, `CREATE INDEX IF NOT EXISTS names_user_idx ON names (user_id)`)
		},
		func(ctx context.Context, db *bun.DB) error {
			return dropTable(ctx, db, (*bunstore.NameRow)(nil))
		},
	)
}
