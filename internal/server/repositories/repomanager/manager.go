// Package repomanager vends dialect-specific repository implementations and
// runs the embedded goose migrations for them.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/stableftp/internal/dbx"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/transfers"
	"github.com/pressly/goose/v3"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
	Transfers(db dbx.DBTX) transfers.Repository
}

// New returns the manager for d.
func New(d dbx.Dialect) (RepositoryManager, error) {
	switch d {
	case dbx.Postgres:
		return &PostgresRepositoryManager{}, nil
	case dbx.SQLite:
		return &SQLiteRepositoryManager{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func migrate(ctx context.Context, db *sql.DB, d dbx.Dialect, fsys fs.FS) error {
	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.GooseDialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate %s: %w", d, err)
	}
	return nil
}
