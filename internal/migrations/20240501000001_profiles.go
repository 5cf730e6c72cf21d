package migrations

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/goliatone/go-dashboard-auth/repository"
)

func init() {
	Migrations.MustRegister(upProfiles, downProfiles)
}

func upProfiles(ctx context.Context, db *bun.DB) error {
	if err := repository.CreateSchema(ctx, db); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create profiles table")
	}
	_, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role)")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create profiles role index")
	}
	return nil
}

func downProfiles(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*auth.Profile)(nil)).IfExists().Exec(ctx)
	return err
}
