// Package store is the durable progress store: one record per uploaded
// filename plus the credentials the server accepts.
//
// Every mutation goes through a single writer, one at a time, across the
// whole process. Lookups run concurrently and never wait for the writer.
package store

import (
	"context"

	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

// ProgressStore is the persistence contract used by the transfer planner,
// the packet pump and the auth gate.
type ProgressStore interface {
	// FindByFilename returns common.ErrorNotFound when no record exists.
	FindByFilename(ctx context.Context, name string) (*models.TransferRecord, error)
	// Create assigns ID and CreatedAt. A duplicate filename yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, rec *models.TransferRecord) (*models.TransferRecord, error)
	// IncrementCurrentPacket atomically adds one to CurrentPacket and returns
	// the updated record. It fails with common.ErrorProgressOverflow instead
	// of passing TotalPackets.
	IncrementCurrentPacket(ctx context.Context, id int32) (*models.TransferRecord, error)
	// FindCredentialByToken looks a plaintext token up by its digest.
	FindCredentialByToken(ctx context.Context, token string) (*models.Credential, error)
}

// AdminStore adds the out-of-band operations used by the admin tool.
type AdminStore interface {
	ProgressStore
	// CreateCredential stores a new credential for token.
	CreateCredential(ctx context.Context, token string, notes *string) (*models.Credential, error)
	ListCredentials(ctx context.Context) ([]models.Credential, error)
	ListTransfers(ctx context.Context) ([]models.TransferRecord, error)
	Close() error
}
