// Package cryptox holds the hashing helpers for bearer tokens and uploaded
// files.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"golang.org/x/crypto/blake2b"
)

// TokenBytes is the amount of randomness in a generated token.
const TokenBytes = 32

// GenerateToken returns a fresh random bearer token, hex-encoded.
func GenerateToken() (string, error) {
	return common.MakeRandHexString(TokenBytes)
}

// HashToken returns the hex BLAKE2b-256 digest under which a token is stored.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DigestsEqual compares two hex digests in constant time.
func DigestsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FileDigest streams r through BLAKE2b-256 and returns the hex digest.
func FileDigest(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
