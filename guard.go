package portalauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/intranetkit/portalauth/token"
)

// AdminGuard admits principals that are admins both in their credential and
// in a fresh read of the user store.
type AdminGuard struct {
	users   UserStore
	metrics *Metrics
	logger  *slog.Logger
	onDeny  func(ctx context.Context, p Principal, err error)
}

// Require returns p with AccountState filled from the user store, or one of
// ErrInsufficientRole, ErrAccountNotActive and ErrStoreUnavailable.
//
// The role in p is checked first so non-admins never cause a store read.
func (g *AdminGuard) Require(ctx context.Context, p Principal) (Principal, error) {
	if p.Role != token.RoleAdmin {
		return p, g.deny(ctx, p, ErrInsufficientRole)
	}

	rec, err := g.users.GetByID(ctx, p.UserID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return p, g.deny(ctx, p, ErrAccountNotActive)
	case err != nil:
		g.logger.ErrorContext(ctx, "admin guard user lookup failed",
			slog.Int64("user_id", p.UserID), slog.Any("error", err))
		return p, g.deny(ctx, p, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	p.AccountState = rec.AccountState
	if rec.AccountState != AccountActive {
		return p, g.deny(ctx, p, ErrAccountNotActive)
	}
	// demotion takes effect before the token expires
	if rec.Role != token.RoleAdmin {
		return p, g.deny(ctx, p, ErrInsufficientRole)
	}

	g.metrics.Inc(MetricAdminAllowed)
	return p, nil
}

func (g *AdminGuard) deny(ctx context.Context, p Principal, err error) error {
	g.metrics.Inc(MetricAdminDenied)
	g.logger.DebugContext(ctx, "admin access denied",
		slog.Int64("user_id", p.UserID), slog.String("reason", string(KindOf(err))))
	if g.onDeny != nil {
		g.onDeny(ctx, p, err)
	}
	return err
}
