package migrations

import (
	"context"

	"github.com/rtm-python/est/internal/infra/bunstore"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if err := createTable(ctx, db, (*bunstore.TestRow)(nil)); err != nil {
				return err
			}
			return exec(ctx, db, `CREATE INDEX IF NOT EXISTS tests_extension_idx ON tests (extension)`)
		},
		func(ctx context.Context, db *bun.DB) error {
			return dropTable(ctx, db, (*bunstore.TestRow)(nil))
		},
	)
}
