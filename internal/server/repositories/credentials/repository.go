// Package credentials persists the bearer-token credentials accepted by the
// server.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)
	FindByTokenHash(ctx context.Context, hash string) (*models.Credential, error)
	List(ctx context.Context) ([]models.Credential, error)
}
