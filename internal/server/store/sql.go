package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stableftp/internal/cryptox"
	"github.com/dmitrijs2005/stableftp/internal/dbx"
	"github.com/dmitrijs2005/stableftp/internal/server/models"
	"github.com/dmitrijs2005/stableftp/internal/server/repositories/repomanager"
)

// SQLStore keeps two handles on one database: a serial writer restricted to
// a single connection, and a read pool used without any locking.
type SQLStore struct {
	writer *dbx.SerialWriter
	reader *sql.DB
	repos  repomanager.RepositoryManager
}

// NewSQLStore wraps already opened handles. writeDB is limited to one
// connection.
func NewSQLStore(writeDB, readDB *sql.DB, repos repomanager.RepositoryManager) *SQLStore {
	return &SQLStore{
		writer: dbx.NewSerialWriter(writeDB),
		reader: readDB,
		repos:  repos,
	}
}

// Open connects to dsn, applies migrations when migrate is set and returns
// the store.
func Open(ctx context.Context, dsn string, migrate bool) (*SQLStore, error) {
	writeDB, dialect, err := dbx.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	readDB := writeDB
	if !dbx.InMemory(dsn) {
		if readDB, _, err = dbx.Open(ctx, dsn); err != nil {
			_ = writeDB.Close()
			return nil, err
		}
	}

	repos, err := repomanager.New(dialect)
	if err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, err
	}

	s := NewSQLStore(writeDB, readDB, repos)
	if migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the schema migrations through the write handle.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.repos.RunMigrations(ctx, s.writer.DB())
}

func (s *SQLStore) Close() error {
	return errors.Join(s.writer.DB().Close(), s.reader.Close())
}

func (s *SQLStore) FindByFilename(ctx context.Context, name string) (*models.TransferRecord, error) {
	return s.repos.Transfers(s.reader).FindByFilename(ctx, name)
}

func (s *SQLStore) Create(ctx context.Context, rec *models.TransferRecord) (*models.TransferRecord, error) {
	if rec.CurrentPacket > rec.TotalPackets {
		return nil, fmt.Errorf("create %q: current packet %d beyond total %d", rec.Filename, rec.CurrentPacket, rec.TotalPackets)
	}

	var created *models.TransferRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repos.Transfers(tx).Create(ctx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SQLStore) IncrementCurrentPacket(ctx context.Context, id int32) (*models.TransferRecord, error) {
	var updated *models.TransferRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		updated, err = s.repos.Transfers(tx).IncrementCurrentPacket(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLStore) FindCredentialByToken(ctx context.Context, token string) (*models.Credential, error) {
	return s.repos.Credentials(s.reader).FindByTokenHash(ctx, cryptox.HashToken(token))
}

func (s *SQLStore) CreateCredential(ctx context.Context, token string, notes *string) (*models.Credential, error) {
	var created *models.Credential
	err := s.writer.Do(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repos.Credentials(tx).Create(ctx, &models.Credential{
			TokenHash: cryptox.HashToken(token),
			Notes:     notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SQLStore) ListCredentials(ctx context.Context) ([]models.Credential, error) {
	return s.repos.Credentials(s.reader).List(ctx)
}

func (s *SQLStore) ListTransfers(ctx context.Context) ([]models.TransferRecord, error) {
	return s.repos.Transfers(s.reader).List(ctx)
}
