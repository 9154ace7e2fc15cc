// Package transfers persists per-file upload progress.
package transfers

import (
	"context"

	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.TransferRecord) (*models.TransferRecord, error)
	FindByFilename(ctx context.Context, name string) (*models.TransferRecord, error)
	// IncrementCurrentPacket advances the record by one packet and returns
	// the updated row. It never moves past TotalPackets.
	IncrementCurrentPacket(ctx context.Context, id int32) (*models.TransferRecord, error)
	List(ctx context.Context) ([]models.TransferRecord, error)
}
