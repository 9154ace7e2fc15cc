// Package auth resolves the bearer token presented in the handshake to the
// identity that owns new transfers.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/cryptox"
	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

// CredentialFinder is the read-only lookup the gate needs.
type CredentialFinder interface {
	FindCredentialByToken(ctx context.Context, token string) (*models.Credential, error)
}

type Gate struct {
	credentials CredentialFinder
}

func NewGate(credentials CredentialFinder) *Gate {
	return &Gate{credentials: credentials}
}

// Authenticate returns the owner id for token, or common.ErrorNotFound for
// an empty or unknown token. It performs exactly one lookup and no writes.
func (g *Gate) Authenticate(ctx context.Context, token string) (int32, error) {
	if token == "" {
		return 0, common.ErrorNotFound
	}

	c, err := g.credentials.FindCredentialByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("credential lookup: %w", err)
	}

	if !cryptox.DigestsEqual(c.TokenHash, cryptox.HashToken(token)) {
		return 0, common.ErrorNotFound
	}
	return c.ID, nil
}
