package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/stableftp/internal/dbx"
	"github.com/dmitrijs2005/stableftp/internal/server/migrations"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/transfers"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct{}

// Credentials returns a credentials.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

// Transfers returns a transfers.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Transfers(db dbx.DBTX) transfers.Repository {
	return transfers.NewPostgresRepository(db)
}

// RunMigrations applies the embedded PostgreSQL migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, dbx.Postgres, migrations.Postgres())
}
