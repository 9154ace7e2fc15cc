package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/stableftp/internal/dbx"
	"github.com/dmitrijs2005/stableftp/internal/server/migrations"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/transfers"
)

// SQLiteRepositoryManager vends SQLite-backed repositories.
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Transfers(db dbx.DBTX) transfers.Repository {
	return transfers.NewSQLiteRepository(db)
}

// RunMigrations applies the embedded SQLite migrations.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, dbx.SQLite, migrations.SQLite())
}
