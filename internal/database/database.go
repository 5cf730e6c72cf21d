package database

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Kind is the database engine behind a DSN
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// DetectKind picks the engine from the DSN scheme. Anything that is not a
// postgres URL is treated as a sqlite file or memory DSN.
func DetectKind(dsn string) Kind {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return KindPostgres
	}
	return KindSQLite
}

// Open returns a pinged Bun DB for dsn
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	switch DetectKind(dsn) {
	case KindPostgres:
		return openPostgres(ctx, dsn)
	default:
		return openSQLite(ctx, dsn)
	}
}

func openPostgres(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(25)

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to ping postgres")
	}
	return db, nil
}

func openSQLite(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open sqlite database")
	}
	// single writer
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to enable foreign keys")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to ping sqlite")
	}
	return db, nil
}
