package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intranetkit/portalauth/token"
)

const (
	// DefaultAccessTTL is the access token lifetime.
	DefaultAccessTTL = 900 * time.Second
	// DefaultRefreshTTL is the refresh token lifetime.
	DefaultRefreshTTL = 604800 * time.Second
)

var (
	// ErrRevoked is returned when the presented refresh token has been revoked.
	ErrRevoked = errors.New("refresh token revoked")
	// ErrStoreUnavailable wraps revocation store failures.
	ErrStoreUnavailable = errors.New("refresh revocation store unavailable")
	// ErrRotationNeedsStore is returned by NewService when rotation is enabled
	// without a revocation store.
	ErrRotationNeedsStore = errors.New("refresh rotation requires a revocation store")
)

// Revocations is the part of revocation.Store the service needs.
type Revocations interface {
	Add(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	Contains(ctx context.Context, token string) (bool, error)
}

// Identity is the subject tokens are issued for.
type Identity struct {
	UserID int64
	Email  string
	Role   token.Role
}

// IdentityFromClaims returns the identity carried by claims.
func IdentityFromClaims(c token.Claims) Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// Pair is an access token with its matching refresh token.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Result is the outcome of an exchange. RefreshToken is empty unless
// rotation is enabled.
type Result struct {
	Identity         Identity
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IdentityLookup resolves the identity to issue for, given the verified
// refresh claims. The Engine uses it to re-read the user record.
type IdentityLookup func(ctx context.Context, claims token.Claims) (Identity, error)

// Config controls lifetimes and rotation.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Rotate     bool
}

// DefaultConfig returns 15 minute access tokens, 7 day refresh tokens and no rotation.
func DefaultConfig() Config {
	return Config{AccessTTL: DefaultAccessTTL, RefreshTTL: DefaultRefreshTTL}
}

// Service issues and exchanges token pairs. It is safe for concurrent use.
type Service struct {
	signer      *token.Signer
	verifier    *token.Verifier
	revocations Revocations
	cfg         Config
}

// NewService returns a Service. revocations may be nil, in which case revoked
// refresh tokens are not detected and rotation is unavailable.
func NewService(signer *token.Signer, verifier *token.Verifier, revocations Revocations, cfg Config) (*Service, error) {
	if signer == nil || verifier == nil {
		return nil, errors.New("refresh: signer and verifier are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh: refresh TTL must not be shorter than access TTL")
	}
	if cfg.Rotate && revocations == nil {
		return nil, ErrRotationNeedsStore
	}
	return &Service{signer: signer, verifier: verifier, revocations: revocations, cfg: cfg}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// IssuePair mints an access and a refresh token for id.
func (s *Service) IssuePair(id Identity) (Pair, error) {
	access, ac, err := s.signer.Issue(id.UserID, id.Email, id.Role, token.TypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, rc, err := s.signer.Issue(id.UserID, id.Email, id.Role, token.TypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  time.Unix(ac.ExpiresAt, 0),
		RefreshToken:     refresh,
		RefreshExpiresAt: time.Unix(rc.ExpiresAt, 0),
	}, nil
}

// IssueAccess mints an access token only.
func (s *Service) IssueAccess(id Identity) (string, time.Time, error) {
	tok, claims, err := s.signer.Issue(id.UserID, id.Email, id.Role, token.TypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, time.Unix(claims.ExpiresAt, 0), nil
}

// Validate verifies refreshToken as an unrevoked refresh token and returns
// its claims. It does not mutate any state.
func (s *Service) Validate(ctx context.Context, refreshToken string) (token.Claims, error) {
	claims, err := s.verifier.VerifyType(refreshToken, token.TypeRefresh)
	if err != nil {
		return token.Claims{}, err
	}
	if s.revocations == nil {
		return claims, nil
	}
	revoked, err := s.revocations.Contains(ctx, refreshToken)
	if err != nil {
		return token.Claims{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return token.Claims{}, ErrRevoked
	}
	return claims, nil
}

// Refresh exchanges refreshToken for a new access token issued to the
// identity in its claims.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Result, error) {
	return s.RefreshWith(ctx, refreshToken, nil)
}

// RefreshWith is Refresh with the issued identity supplied by lookup. A nil
// lookup uses the claims. Errors from lookup are returned unchanged.
func (s *Service) RefreshWith(ctx context.Context, refreshToken string, lookup IdentityLookup) (Result, error) {
	claims, err := s.Validate(ctx, refreshToken)
	if err != nil {
		return Result{}, err
	}

	id := IdentityFromClaims(claims)
	if lookup != nil {
		id, err = lookup(ctx, claims)
		if err != nil {
			return Result{}, err
		}
	}

	if s.cfg.Rotate {
		added, err := s.revocations.Add(ctx, refreshToken, time.Unix(claims.ExpiresAt, 0))
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !added {
			// a concurrent exchange already consumed this token
			return Result{}, ErrRevoked
		}
		pair, err := s.IssuePair(id)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Identity:         id,
			AccessToken:      pair.AccessToken,
			AccessExpiresAt:  pair.AccessExpiresAt,
			RefreshToken:     pair.RefreshToken,
			RefreshExpiresAt: pair.RefreshExpiresAt,
		}, nil
	}

	access, exp, err := s.IssueAccess(id)
	if err != nil {
		return Result{}, err
	}
	return Result{Identity: id, AccessToken: access, AccessExpiresAt: exp}, nil
}
