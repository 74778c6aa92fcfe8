package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_hash CHAR(64)    PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS revoked_tokens_expires_at_idx ON revoked_tokens (expires_at);
`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps revoked token hashes in the revoked_tokens table.
// Lapsed rows read as absent; Purge deletes them.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

// NewPostgresStore returns a PostgresStore using db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// WithClock replaces time.Now for expiry comparisons.
func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	if now != nil {
		s.now = now
	}
	return s
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const op = "revocation.postgres.EnsureSchema"

	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%s: %w", op, wrapPgErr(err))
	}
	return nil
}

// Add implements Store.
func (s *PostgresStore) Add(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	const op = "revocation.postgres.Add"

	now := s.now()
	if !expiresAt.After(now) {
		return false, nil
	}

	query := `
		INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO NOTHING
	`

	tag, err := s.db.Exec(ctx, query, HashToken(token), expiresAt.UTC(), now.UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, wrapPgErr(err))
	}
	return tag.RowsAffected() == 1, nil
}

// Contains implements Store.
func (s *PostgresStore) Contains(ctx context.Context, token string) (bool, error) {
	const op = "revocation.postgres.Contains"

	query := `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens
			WHERE token_hash = $1 AND expires_at > $2
		)
	`

	var found bool
	if err := s.db.QueryRow(ctx, query, HashToken(token), s.now().UTC()).Scan(&found); err != nil {
		return false, fmt.Errorf("%s: %w", op, wrapPgErr(err))
	}
	return found, nil
}

// Purge implements Store by deleting rows whose expires_at has passed.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	const op = "revocation.postgres.Purge"

	tag, err := s.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, wrapPgErr(err))
	}
	return tag.RowsAffected(), nil
}

func wrapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

var _ Store = (*PostgresStore)(nil)
