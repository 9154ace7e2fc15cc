// Package migrations embeds the goose schema migrations, one directory per
// SQL dialect.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql
var postgres embed.FS

//go:embed sqlite/*.sql
var sqlite embed.FS

// Postgres returns the PostgreSQL migrations rooted at ".".
func Postgres() fs.FS {
	return sub(postgres, "postgres")
}

// SQLite returns the SQLite migrations rooted at ".".
func SQLite() fs.FS {
	return sub(sqlite, "sqlite")
}

func sub(f embed.FS, dir string) fs.FS {
	s, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return s
}
