// Package userstore provides a PostgreSQL implementation of
// portalauth.UserStore and portalauth.PasswordHashUpdater.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/token"
)

// ErrEmailTaken is returned by Create for a duplicate e-mail address.
var ErrEmailTaken = errors.New("userstore: email already registered")

// Schema creates the users table. E-mail is unique case-insensitively.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL   PRIMARY KEY,
	email         TEXT        NOT NULL,
	password_hash TEXT        NOT NULL,
	role          TEXT        NOT NULL CHECK (role IN ('admin', 'company', 'employee')),
	company_name  TEXT        NOT NULL DEFAULT '',
	account_state TEXT        NOT NULL DEFAULT 'pending' CHECK (account_state IN ('active', 'pending', 'disabled')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email));
`

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const op = "userstore.postgres.EnsureSchema"

	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const selectUser = `
	SELECT id, email, password_hash, role, company_name, account_state
	FROM users
`

// GetByID returns portalauth.ErrUserNotFound when no row matches.
func (s *Postgres) GetByID(ctx context.Context, id int64) (portalauth.UserRecord, error) {
	const op = "userstore.postgres.GetByID"

	rec, err := scanUser(s.db.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
	if err != nil {
		return portalauth.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// GetByEmail matches case-insensitively.
func (s *Postgres) GetByEmail(ctx context.Context, email string) (portalauth.UserRecord, error) {
	const op = "userstore.postgres.GetByEmail"

	email = strings.ToLower(strings.TrimSpace(email))
	rec, err := scanUser(s.db.QueryRow(ctx, selectUser+`WHERE lower(email) = $1`, email))
	if err != nil {
		return portalauth.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (s *Postgres) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	const op = "userstore.postgres.UpdatePasswordHash"

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, portalauth.ErrUserNotFound)
	}
	return nil
}

// Create inserts rec and returns its id. rec.ID is ignored.
func (s *Postgres) Create(ctx context.Context, rec portalauth.UserRecord) (int64, error) {
	const op = "userstore.postgres.Create"

	if !rec.Role.Valid() || !rec.AccountState.Valid() {
		return 0, fmt.Errorf("%s: invalid role %q or account state %q", op, rec.Role, rec.AccountState)
	}

	query := `
		INSERT INTO users (email, password_hash, role, company_name, account_state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRow(ctx, query,
		strings.ToLower(strings.TrimSpace(rec.Email)),
		rec.PasswordHash,
		string(rec.Role),
		rec.CompanyName,
		string(rec.AccountState),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func scanUser(row pgx.Row) (portalauth.UserRecord, error) {
	var (
		rec   portalauth.UserRecord
		role  string
		state string
	)
	err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &role, &rec.CompanyName, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return portalauth.UserRecord{}, portalauth.ErrUserNotFound
	}
	if err != nil {
		return portalauth.UserRecord{}, err
	}
	rec.Role = token.Role(role)
	rec.AccountState = portalauth.AccountState(state)
	return rec, nil
}

var (
	_ portalauth.UserStore           = (*Postgres)(nil)
	_ portalauth.PasswordHashUpdater = (*Postgres)(nil)
)
