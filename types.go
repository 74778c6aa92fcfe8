package portalauth

import (
	"context"
	"time"

	"github.com/intranetkit/portalauth/token"
)

// AccountState is the approval state of an account.
type AccountState string

const (
	AccountActive   AccountState = "active"
	AccountPending  AccountState = "pending"
	AccountDisabled AccountState = "disabled"
)

// Valid reports whether s is a known state.
func (s AccountState) Valid() bool {
	switch s {
	case AccountActive, AccountPending, AccountDisabled:
		return true
	default:
		return false
	}
}

// UserRecord is an account as stored by the application.
type UserRecord struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         token.Role
	CompanyName  string
	AccountState AccountState
}

// UserStore is implemented by the application's user repository. Both
// lookups return ErrUserNotFound for unknown users; any other error is
// treated as the store being unavailable.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (UserRecord, error)
	GetByEmail(ctx context.Context, email string) (UserRecord, error)
}

// PasswordHashUpdater is optionally implemented by a UserStore. When present,
// hashes in a legacy format are replaced after a successful login.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// Source tells where a Principal's identity came from.
type Source string

const (
	SourceToken   Source = "token"
	SourceSession Source = "session"
)

// Principal is an authenticated caller.
//
// AccountState is empty when the Principal comes from the Gateway; AdminGuard
// and Engine.Me fill it from a fresh user store read.
type Principal struct {
	UserID       int64        `json:"user_id"`
	Email        string       `json:"email"`
	Role         token.Role   `json:"role"`
	CompanyName  string       `json:"company_name,omitempty"`
	AccountState AccountState `json:"account_state,omitempty"`
	Source       Source       `json:"source"`
	SessionID    string       `json:"-"`
	Token        string       `json:"-"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == token.RoleAdmin
}
