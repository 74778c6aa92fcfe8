package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrUnavailable wraps transport failures of the backing store.
	ErrUnavailable = errors.New("revocation store unavailable")
	// ErrSchemaMissing is returned by PostgresStore when the revoked_tokens
	// table does not exist. Run EnsureSchema or apply Schema.
	ErrSchemaMissing = errors.New("revocation schema missing")
)

// Store is the contract shared by all backends.
type Store interface {
	// Add records token until expiresAt. added is false when the token was
	// already recorded or has already expired.
	Add(ctx context.Context, token string, expiresAt time.Time) (added bool, err error)
	// Contains reports whether token is currently revoked.
	Contains(ctx context.Context, token string) (bool, error)
	// Purge drops lapsed entries and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}

// HashToken returns the lowercase hex SHA-256 of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
