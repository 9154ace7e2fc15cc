package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names a supported database engine.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectFor picks the engine from a DSN: postgres:// and postgresql:// URLs
// select PostgreSQL, anything else is treated as an SQLite database.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// DriverName is the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// GooseDialect is the dialect name goose expects for d.
func (d Dialect) GooseDialect() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

// sqliteDSN turns a bare file path into a URI that enables WAL and a busy
// timeout. URIs and :memory: pass through unchanged.
func sqliteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn
	}
	return "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// InMemory reports whether dsn names a private in-memory SQLite database,
// which exists only inside the connection pool that opened it.
func InMemory(dsn string) bool {
	return DialectFor(dsn) == SQLite && (dsn == ":memory:" || strings.Contains(dsn, "mode=memory"))
}

// Open opens and pings the database named by dsn.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	d := DialectFor(dsn)
	source := dsn
	if d == SQLite {
		source = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.DriverName(), source)
	if err != nil {
		return nil, d, fmt.Errorf("open %s database: %w", d, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, d, fmt.Errorf("ping %s database: %w", d, err)
	}
	return db, d, nil
}
