// Package migrations creates the relational schema with bun models so the
// same migrations run on postgres and sqlite.
package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// Apply runs every pending migration.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}

func createTable(ctx context.Context, db *bun.DB, model interface{}) error {
	_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
	return err
}

func dropTable(ctx context.Context, db *bun.DB, model interface{}) error {
	_, err := db.NewDropTable().Model(model).IfExists().Exec(ctx)
	return err
}

func exec(ctx context.Context, db *bun.DB, queries ...string) error {
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
