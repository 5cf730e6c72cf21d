package migrations

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-dashboard-auth/provider/local"
)

func init() {
	Migrations.MustRegister(upCredentials, downCredentials)
}

func upCredentials(ctx context.Context, db *bun.DB) error {
	if err := local.CreateSchema(ctx, db); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create credential tables")
	}
	return nil
}

func downCredentials(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*local.PasswordResetModel)(nil), (*local.CredentialModel)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
