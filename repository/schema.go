package repository

import (
	"context"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/uptrace/bun"
)

// CreateSchema creates the profiles table if it does not exist
func CreateSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*auth.Profile)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
