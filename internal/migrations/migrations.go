package migrations

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry applied by the migrate command. Each migration
// lives in its own timestamped file.
var Migrations = migrate.NewMigrations()

// Apply initializes the migration tables and runs every pending migration
// under the migration lock.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize migrator")
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "failed to acquire migration lock")
	}
	defer func() { _ = migrator.Unlock(ctx) }()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migration failed")
	}
	return group, nil
}
