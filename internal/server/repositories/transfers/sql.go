package transfers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/dbx"
	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

const columns = `id, filename, file_size, current_packet, total_packets, packet_size, owner_id, created_at`

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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.TransferRecord, error) {
	r := &models.TransferRecord{}
	err := s.Scan(&r.ID, &r.Filename, &r.Size, &r.CurrentPacket, &r.TotalPackets, &r.PacketSize, &r.OwnerID, (*dbx.Timestamp)(&r.CreatedAt))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLRepository) Create(ctx context.Context, rec *models.TransferRecord) (*models.TransferRecord, error) {
	query :=
		`INSERT INTO transfers (filename, file_size, current_packet, total_packets, packet_size, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query),
		rec.Filename, rec.Size, rec.CurrentPacket, rec.TotalPackets, rec.PacketSize, rec.OwnerID).
		Scan(&rec.ID, (*dbx.Timestamp)(&rec.CreatedAt))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *SQLRepository) FindByFilename(ctx context.Context, name string) (*models.TransferRecord, error) {
	query := `SELECT ` + columns + ` FROM transfers WHERE filename = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query), name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *SQLRepository) IncrementCurrentPacket(ctx context.Context, id int32) (*models.TransferRecord, error) {
	query :=
		`UPDATE transfers SET current_packet = current_packet + 1
		 WHERE id = $1 AND current_packet < total_packets
		 RETURNING ` + columns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query), id))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// nothing updated: either the id is unknown or the transfer is complete
	var exists int
	err = r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, `SELECT 1 FROM transfers WHERE id = $1`), id).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, common.ErrorNotFound
	case err != nil:
		return nil, fmt.Errorf("db error: %w", err)
	}
	return nil, common.ErrorProgressOverflow
}

func (r *SQLRepository) List(ctx context.Context) ([]models.TransferRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM transfers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.TransferRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
