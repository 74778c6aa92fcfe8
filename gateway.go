package portalauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/intranetkit/portalauth/session"
	"github.com/intranetkit/portalauth/token"
)

// RevocationChecker reports whether a token has been revoked.
type RevocationChecker interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// Credentials are the raw credential values found on a request.
type Credentials struct {
	Bearer    string
	Cookie    string
	Query     string
	SessionID string
}

// Result is the outcome of authenticating one request. When Authenticated is
// false, Reason says why and Principal is zero.
type Result struct {
	Authenticated bool
	Principal     Principal
	Reason        Kind
}

// Err returns nil for an authenticated result and the sentinel of Reason otherwise.
func (r Result) Err() error {
	if r.Authenticated {
		return nil
	}
	return r.Reason.Err()
}

// Gateway resolves the identity behind a request. It is safe for concurrent use.
type Gateway struct {
	verifier    *token.Verifier
	revocations RevocationChecker
	sessions    *session.Store
	http        HTTPConfig
	metrics     *Metrics
	logger      *slog.Logger
}

// ExtractCredentials collects every credential the request carries. The
// query parameter is read only when AllowQueryToken is set.
func (g *Gateway) ExtractCredentials(r *http.Request) Credentials {
	var c Credentials
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			c.Bearer = strings.TrimSpace(value)
		}
	}
	if ck, err := r.Cookie(g.http.TokenCookie); err == nil {
		c.Cookie = ck.Value
	}
	if ck, err := r.Cookie(g.http.SessionCookie); err == nil {
		c.SessionID = ck.Value
	}
	if g.http.AllowQueryToken && g.http.QueryTokenParam != "" {
		c.Query = r.URL.Query().Get(g.http.QueryTokenParam)
	}
	return c
}

// Authenticate is Resolve applied to the request's credentials.
func (g *Gateway) Authenticate(r *http.Request) Result {
	return g.Resolve(r.Context(), g.ExtractCredentials(r))
}

// Resolve authenticates c.
//
// The first non-empty of bearer, token cookie, the session's stored token and
// query token is verified as an access token. A valid token is then checked
// against the revocation store; revoked or unreachable is final. Without a
// valid token the session itself authenticates the request. When a token was
// presented and failed, its reason is reported in preference to NoSession.
func (g *Gateway) Resolve(ctx context.Context, c Credentials) Result {
	if g.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { g.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	sl := sessionLoader{store: g.sessions, id: c.SessionID}

	candidate := firstNonEmpty(c.Bearer, c.Cookie)
	if candidate == "" && c.SessionID != "" {
		if sess, err := sl.load(ctx); err == nil {
			candidate = sess.AccessToken
		}
	}
	if candidate == "" {
		candidate = c.Query
	}

	tokenReason := KindNone
	if candidate != "" {
		claims, err := g.verifier.VerifyType(candidate, token.TypeAccess)
		if err == nil {
			return g.checkRevoked(ctx, candidate, claims, &sl)
		}
		tokenReason = KindOf(err)
		if tokenReason == KindInvalidEncoding {
			tokenReason = KindMalformedToken
		}
	}

	if c.SessionID == "" {
		if tokenReason != KindNone {
			return g.fail(ctx, tokenReason)
		}
		return g.fail(ctx, KindNoCredentials)
	}

	sess, err := sl.load(ctx)
	switch {
	case errors.Is(err, session.ErrUnavailable):
		return g.fail(ctx, KindStoreUnavailable)
	case err != nil || !sess.Valid():
		return g.fail(ctx, orKind(tokenReason, KindNoSession))
	}

	if err := g.sessions.Touch(ctx, sess.ID); err != nil {
		if errors.Is(err, session.ErrUnavailable) {
			return g.fail(ctx, KindStoreUnavailable)
		}
		return g.fail(ctx, orKind(tokenReason, KindNoSession))
	}

	g.metrics.Inc(MetricAuthSessionSuccess)
	return Result{
		Authenticated: true,
		Principal: Principal{
			UserID:      sess.UserID,
			Email:       sess.Email,
			Role:        token.Role(sess.Role),
			CompanyName: sess.CompanyName,
			Source:      SourceSession,
			SessionID:   sess.ID,
			Token:       sess.AccessToken,
			ExpiresAt:   time.Now().Add(g.sessions.IdleTTL()),
		},
	}
}

func (g *Gateway) checkRevoked(ctx context.Context, tok string, claims token.Claims, sl *sessionLoader) Result {
	revoked, err := g.revocations.Contains(ctx, tok)
	if err != nil {
		g.logger.WarnContext(ctx, "revocation check failed", slog.Any("error", err))
		return g.fail(ctx, KindStoreUnavailable)
	}
	if revoked {
		return g.fail(ctx, KindRevoked)
	}

	p := Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		Source:    SourceToken,
		Token:     tok,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}
	// a session already read for this request contributes its id and company
	if sess := sl.loaded(); sess != nil && sess.UserID == claims.UserID {
		p.SessionID = sess.ID
		p.CompanyName = sess.CompanyName
	}

	g.metrics.Inc(MetricAuthTokenSuccess)
	return Result{Authenticated: true, Principal: p}
}

func (g *Gateway) fail(ctx context.Context, reason Kind) Result {
	switch reason {
	case KindRevoked:
		g.metrics.Inc(MetricAuthRevoked)
	case KindStoreUnavailable:
		g.metrics.Inc(MetricAuthStoreUnavailable)
	default:
		g.metrics.Inc(MetricAuthFailure)
	}
	g.logger.DebugContext(ctx, "authentication failed", slog.String("reason", string(reason)))
	return Result{Reason: reason}
}

// sessionLoader reads the request's session at most once.
type sessionLoader struct {
	store *session.Store
	id    string
	done  bool
	sess  *session.Session
	err   error
}

func (l *sessionLoader) load(ctx context.Context) (*session.Session, error) {
	if !l.done {
		l.done = true
		l.sess, l.err = l.store.Read(ctx, l.id)
	}
	return l.sess, l.err
}

func (l *sessionLoader) loaded() *session.Session {
	if !l.done || l.err != nil {
		return nil
	}
	return l.sess
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orKind(k, fallback Kind) Kind {
	if k != KindNone {
		return k
	}
	return fallback
}
