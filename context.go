package portalauth

import (
	"context"
	"net/http"
)

type clientIPContextKey struct{}
type principalContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// WithPrincipal stores an authenticated principal in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// SessionContext carries the session id of one request. Login replaces it,
// logout clears it, and the HTTP layer writes the result back as a cookie.
type SessionContext struct {
	ID      string
	changed bool
}

// SessionFromRequest reads the session cookie named cookieName.
func SessionFromRequest(r *http.Request, cookieName string) *SessionContext {
	sc := &SessionContext{}
	if c, err := r.Cookie(cookieName); err == nil {
		sc.ID = c.Value
	}
	return sc
}

// Present reports whether a session id is set.
func (s *SessionContext) Present() bool {
	return s != nil && s.ID != ""
}

// Rotate replaces the session id.
func (s *SessionContext) Rotate(id string) {
	if s == nil {
		return
	}
	s.ID = id
	s.changed = true
}

// Clear drops the session id.
func (s *SessionContext) Clear() {
	if s == nil {
		return
	}
	s.ID = ""
	s.changed = true
}

// Changed reports whether Rotate or Clear was called, meaning the cookie must
// be rewritten.
func (s *SessionContext) Changed() bool {
	return s != nil && s.changed
}
