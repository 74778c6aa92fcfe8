package portalauth

import (
	"errors"

	"github.com/intranetkit/portalauth/internal/rate"
	"github.com/intranetkit/portalauth/refresh"
	"github.com/intranetkit/portalauth/revocation"
	"github.com/intranetkit/portalauth/session"
	"github.com/intranetkit/portalauth/token"
)

var (
	// ErrNoCredentials is returned when a request carries neither a token nor a session.
	ErrNoCredentials = errors.New("no credentials")
	// ErrNoSession is returned when the session cookie names no usable session.
	ErrNoSession = errors.New("no session")
	// ErrTokenRevoked is returned when a presented token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrAccountNotActive is returned when the account exists but is not approved.
	ErrAccountNotActive = errors.New("account not active")
	// ErrInsufficientRole is returned when the caller lacks the required role.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrStoreUnavailable is returned when a backing store cannot be reached.
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrInvalidCredentials is returned for an unknown e-mail or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited is returned when login attempts are throttled.
	ErrRateLimited = errors.New("rate limited")
	// ErrUserNotFound is returned by UserStore implementations.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or
	// partially built engine.
	ErrEngineNotReady = errors.New("engine not ready")
)

// Kind classifies an authentication failure.
type Kind string

const (
	KindNone               Kind = ""
	KindMalformedToken     Kind = "malformed_token"
	KindInvalidEncoding    Kind = "invalid_encoding"
	KindSignatureMismatch  Kind = "signature_mismatch"
	KindExpired            Kind = "expired"
	KindRevoked            Kind = "revoked"
	KindInvalidTokenType   Kind = "invalid_token_type"
	KindNoCredentials      Kind = "no_credentials"
	KindNoSession          Kind = "no_session"
	KindAccountNotActive   Kind = "account_not_active"
	KindInsufficientRole   Kind = "insufficient_role"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// KindOf maps err, including sentinels of the sub-packages, to its Kind.
// It returns KindNone for nil and KindInternal for anything unrecognised.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, token.ErrMalformed):
		return KindMalformedToken
	case errors.Is(err, token.ErrInvalidEncoding):
		return KindInvalidEncoding
	case errors.Is(err, token.ErrSignatureMismatch):
		return KindSignatureMismatch
	case errors.Is(err, token.ErrExpired):
		return KindExpired
	case errors.Is(err, ErrTokenRevoked), errors.Is(err, refresh.ErrRevoked):
		return KindRevoked
	case errors.Is(err, token.ErrInvalidTokenType):
		return KindInvalidTokenType
	case errors.Is(err, ErrNoCredentials):
		return KindNoCredentials
	case errors.Is(err, ErrNoSession), errors.Is(err, session.ErrNotFound):
		return KindNoSession
	case errors.Is(err, ErrAccountNotActive):
		return KindAccountNotActive
	case errors.Is(err, ErrInsufficientRole):
		return KindInsufficientRole
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, session.ErrUnavailable),
		errors.Is(err, revocation.ErrUnavailable),
		errors.Is(err, refresh.ErrStoreUnavailable),
		errors.Is(err, rate.ErrUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrRateLimited), errors.Is(err, rate.ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}

// Err returns the canonical sentinel for k.
func (k Kind) Err() error {
	switch k {
	case KindNone:
		return nil
	case KindMalformedToken:
		return token.ErrMalformed
	case KindInvalidEncoding:
		return token.ErrInvalidEncoding
	case KindSignatureMismatch:
		return token.ErrSignatureMismatch
	case KindExpired:
		return token.ErrExpired
	case KindRevoked:
		return ErrTokenRevoked
	case KindInvalidTokenType:
		return token.ErrInvalidTokenType
	case KindNoCredentials:
		return ErrNoCredentials
	case KindNoSession:
		return ErrNoSession
	case KindAccountNotActive:
		return ErrAccountNotActive
	case KindInsufficientRole:
		return ErrInsufficientRole
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindRateLimited:
		return ErrRateLimited
	default:
		return errors.New(string(k))
	}
}

// ClientMessage is the text shown to clients for k. Malformed tokens and
// signature mismatches share one message so responses do not reveal which
// check failed.
func (k Kind) ClientMessage() string {
	switch k {
	case KindMalformedToken, KindInvalidEncoding, KindSignatureMismatch:
		return "invalid token"
	case KindExpired:
		return "token expired"
	case KindRevoked:
		return "token revoked"
	case KindInvalidTokenType:
		return "wrong token type"
	case KindNoCredentials:
		return "authentication required"
	case KindNoSession:
		return "session expired"
	case KindAccountNotActive:
		return "account not approved"
	case KindInsufficientRole:
		return "insufficient permissions"
	case KindStoreUnavailable:
		return "authentication temporarily unavailable"
	case KindInvalidCredentials:
		return "invalid email or password"
	case KindRateLimited:
		return "too many attempts, try again later"
	default:
		return "internal error"
	}
}
