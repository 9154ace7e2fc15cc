package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/dbx"
	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.Postgres}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.SQLite}
}

func (r *SQLRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	query :=
		`INSERT INTO credentials (token_hash, notes)
		 VALUES ($1, $2)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query), c.TokenHash, c.Notes).
		Scan(&c.ID, (*dbx.Timestamp)(&c.CreatedAt))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *SQLRepository) FindByTokenHash(ctx context.Context, hash string) (*models.Credential, error) {
	query :=
		`SELECT id, token_hash, notes, created_at FROM credentials
		 WHERE token_hash = $1`

	c := &models.Credential{}
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query), hash).
		Scan(&c.ID, &c.TokenHash, &notes, (*dbx.Timestamp)(&c.CreatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if notes.Valid {
		c.Notes = &notes.String
	}

	return c, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]models.Credential, error) {
	query := `SELECT id, token_hash, notes, created_at FROM credentials ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Credential
	for rows.Next() {
		var c models.Credential
		var notes sql.NullString
		if err := rows.Scan(&c.ID, &c.TokenHash, &notes, (*dbx.Timestamp)(&c.CreatedAt)); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if notes.Valid {
			c.Notes = &notes.String
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
