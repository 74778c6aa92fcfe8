package portalauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/intranetkit/portalauth/internal/audit"
	"github.com/intranetkit/portalauth/internal/logging"
	"github.com/intranetkit/portalauth/internal/rate"
	"github.com/intranetkit/portalauth/password"
	"github.com/intranetkit/portalauth/refresh"
	"github.com/intranetkit/portalauth/revocation"
	"github.com/intranetkit/portalauth/session"
	"github.com/intranetkit/portalauth/token"
)

// Engine orchestrates login, refresh, logout and identity lookups on top of
// the token, session and revocation components. Build it with [New].
type Engine struct {
	config      Config
	logger      *slog.Logger
	users       UserStore
	verifier    *token.Verifier
	revocations revocation.Store
	sessions    *session.Store
	refresh     *refresh.Service
	hasher      *password.Hasher
	limiter     *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics
	gateway     *Gateway
	guard       *AdminGuard

	// verified against when the e-mail is unknown so both paths cost the same
	dummyHash string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Principal        Principal
}

// RefreshResult is returned by a successful Refresh. RefreshToken is set only
// when rotation is enabled.
type RefreshResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LogoutRequest names the tokens to revoke. Either may be empty.
type LogoutRequest struct {
	AccessToken  string
	RefreshToken string
}

// LogoutResult reports whether any token was newly revoked.
type LogoutResult struct {
	TokenRevoked bool
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) Config() Config { return cloneConfig(e.config) }

func (e *Engine) Gateway() *Gateway { return e.gateway }

func (e *Engine) Guard() *AdminGuard { return e.guard }

// Revocations returns the configured revocation store.
func (e *Engine) Revocations() revocation.Store { return e.revocations }

// RunJanitor purges lapsed revocation rows until ctx ends. It returns at once
// for the Redis backend, where keys expire on their own.
func (e *Engine) RunJanitor(ctx context.Context) {
	if e.config.Revocation.Backend != RevocationPostgres {
		return
	}
	revocation.NewJanitor(e.revocations, e.config.Revocation.PurgeInterval, e.logger).Run(ctx)
}

/*
====================================
LOGIN
====================================
*/

// Login checks email and password and opens a session.
//
// Any session id already in sc is destroyed and replaced, so a pre-login
// session id can never become authenticated.
func (e *Engine) Login(ctx context.Context, email, pass string, sc *SessionContext) (LoginResult, error) {
	if e == nil || e.users == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)
	redacted := logging.RedactEmail(email)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metrics.Inc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, 0, ErrRateLimited, nil)
				return LoginResult{}, ErrRateLimited
			}
			e.logger.ErrorContext(ctx, "login rate check failed", slog.Any("error", err))
			return LoginResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.ErrorContext(ctx, "user lookup failed", slog.String("email", redacted), slog.Any("error", err))
			return LoginResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		_, _ = e.hasher.Verify(pass, e.dummyHash)
		return LoginResult{}, e.loginFailed(ctx, email, ip, 0, "unknown_email")
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		e.logger.WarnContext(ctx, "stored password hash unusable",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	if !ok {
		return LoginResult{}, e.loginFailed(ctx, email, ip, user.ID, "wrong_password")
	}

	if user.AccountState != AccountActive {
		e.metrics.Inc(MetricLoginInactive)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrAccountNotActive, func() map[string]string {
			return map[string]string{"account_state": string(user.AccountState)}
		})
		return LoginResult{}, ErrAccountNotActive
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, email); err != nil {
			e.logger.WarnContext(ctx, "login counter reset failed", slog.Any("error", err))
		}
	}
	e.maybeRehash(ctx, user, pass)

	pair, err := e.refresh.IssuePair(refresh.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return LoginResult{}, err
	}

	if sc.Present() {
		if err := e.sessions.Destroy(ctx, sc.ID); err != nil {
			return LoginResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	sid, err := e.sessions.Create(ctx, session.Record{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        string(user.Role),
		CompanyName: user.CompanyName,
		AccessToken: pair.AccessToken,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "session create failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return LoginResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sc.Rotate(sid)
	e.metrics.Inc(MetricSessionCreated)
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	e.logger.InfoContext(ctx, "login succeeded", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))

	return LoginResult{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Principal: Principal{
			UserID:       user.ID,
			Email:        user.Email,
			Role:         user.Role,
			CompanyName:  user.CompanyName,
			AccountState: user.AccountState,
			Source:       SourceSession,
			SessionID:    sid,
			Token:        pair.AccessToken,
			ExpiresAt:    pair.AccessExpiresAt,
		},
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip string, userID int64, cause string) error {
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, email, ip); err != nil {
			e.logger.WarnContext(ctx, "login counter increment failed", slog.Any("error", err))
		}
	}
	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, nil)
	e.logger.DebugContext(ctx, "login failed",
		slog.String("email", logging.RedactEmail(email)), slog.String("cause", cause))
	return ErrInvalidCredentials
}

func (e *Engine) maybeRehash(ctx context.Context, user UserRecord, pass string) {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	updater, ok := e.users.(PasswordHashUpdater)
	if !ok {
		return
	}
	hash, err := e.hasher.Hash(pass)
	if err == nil {
		err = updater.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

/*
====================================
REFRESH
====================================
*/

// Refresh exchanges a refresh token for a new access token. The account is
// re-read so a disabled user cannot keep refreshing.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if e == nil || e.refresh == nil {
		return RefreshResult{}, ErrEngineNotReady
	}

	res, err := e.refresh.RefreshWith(ctx, refreshToken, e.lookupIdentity)
	if err != nil {
		switch KindOf(err) {
		case KindRevoked:
			e.metrics.Inc(MetricRefreshRevoked)
		case KindStoreUnavailable:
			e.logger.ErrorContext(ctx, "refresh store failure", slog.Any("error", err))
		}
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, 0, err, nil)
		return RefreshResult{}, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Identity.UserID, nil, func() map[string]string {
		return map[string]string{"rotated": fmt.Sprint(res.RefreshToken != "")}
	})
	return RefreshResult{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}, nil
}

func (e *Engine) lookupIdentity(ctx context.Context, claims token.Claims) (refresh.Identity, error) {
	rec, err := e.users.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return refresh.Identity{}, ErrAccountNotActive
	case err != nil:
		return refresh.Identity{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case rec.AccountState != AccountActive:
		return refresh.Identity{}, ErrAccountNotActive
	}
	return refresh.Identity{UserID: rec.ID, Email: rec.Email, Role: rec.Role}, nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout revokes the given tokens, destroys the session in sc and clears it.
// It never fails: every step is best effort and the result only reports
// whether a token was newly revoked. When req carries no access token the
// session's stored token is revoked instead.
func (e *Engine) Logout(ctx context.Context, req LogoutRequest, sc *SessionContext) LogoutResult {
	var res LogoutResult
	if e == nil {
		return res
	}

	access := req.AccessToken
	if access == "" && sc.Present() {
		if sess, err := e.sessions.Read(ctx, sc.ID); err == nil {
			access = sess.AccessToken
		}
	}

	var userID int64
	if access != "" {
		if claims, err := e.verifier.VerifyType(access, token.TypeAccess); err == nil {
			userID = claims.UserID
			res.TokenRevoked = e.revoke(ctx, access, claims) || res.TokenRevoked
		}
	}
	if req.RefreshToken != "" {
		if claims, err := e.verifier.VerifyType(req.RefreshToken, token.TypeRefresh); err == nil {
			if userID == 0 {
				userID = claims.UserID
			}
			res.TokenRevoked = e.revoke(ctx, req.RefreshToken, claims) || res.TokenRevoked
		}
	}

	if sc.Present() {
		if err := e.sessions.Destroy(ctx, sc.ID); err != nil {
			e.logger.WarnContext(ctx, "session destroy failed", slog.Any("error", err))
		} else {
			e.metrics.Inc(MetricSessionDestroyed)
		}
		sc.Clear()
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, nil, func() map[string]string {
		return map[string]string{"token_revoked": fmt.Sprint(res.TokenRevoked)}
	})
	return res
}

func (e *Engine) revoke(ctx context.Context, tok string, claims token.Claims) bool {
	added, err := e.revocations.Add(ctx, tok, time.Unix(claims.ExpiresAt, 0))
	if err != nil {
		e.logger.WarnContext(ctx, "token revocation failed",
			slog.String("token_type", string(claims.TokenType)), slog.Any("error", err))
		return false
	}
	if added {
		e.metrics.Inc(MetricTokenRevoked)
	}
	return added
}

/*
====================================
ME
====================================
*/

// Me returns p refreshed from the user store, including its account state.
func (e *Engine) Me(ctx context.Context, p Principal) (Principal, error) {
	if e == nil || e.users == nil {
		return Principal{}, ErrEngineNotReady
	}
	rec, err := e.users.GetByID(ctx, p.UserID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return Principal{}, ErrAccountNotActive
	case err != nil:
		return Principal{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	p.Email = rec.Email
	p.Role = rec.Role
	p.CompanyName = rec.CompanyName
	p.AccountState = rec.AccountState
	return p, nil
}
