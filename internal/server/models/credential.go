package models

import "time"

// Credential is a bearer token accepted by the server. Only the token digest
// is stored.
type Credential struct {
	ID        int32     `db:"id"`
	TokenHash string    `db:"token_hash"`
	Notes     *string   `db:"notes"`
	CreatedAt time.Time `db:"created_at"`
}
