package middleware

import (
	"net/http"
	"strings"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/internal/httperr"
	"github.com/intranetkit/portalauth/token"
)

// RequireAuth rejects requests without valid credentials and passes the
// principal to next through the request context.
func RequireAuth(engine *portalauth.Engine) func(http.Handler) http.Handler {
	loginURL := engine.Config().HTTP.LoginURL
	gw := engine.Gateway()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := authenticate(w, r, gw, loginURL)
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireAuth followed by AdminGuard.Require. The principal
// passed on carries the freshly read account state.
func RequireAdmin(engine *portalauth.Engine) func(http.Handler) http.Handler {
	loginURL := engine.Config().HTTP.LoginURL
	gw := engine.Gateway()
	guard := engine.Guard()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := authenticate(w, r, gw, loginURL)
			if !ok {
				return
			}
			p, _ := portalauth.PrincipalFromContext(r.Context())
			p, err := guard.Require(r.Context(), p)
			if err != nil {
				httperr.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(portalauth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole admits principals holding one of roles. Unlike RequireAdmin it
// trusts the role in the credential and does not consult the user store.
func RequireRole(engine *portalauth.Engine, roles ...token.Role) func(http.Handler) http.Handler {
	loginURL := engine.Config().HTTP.LoginURL
	gw := engine.Gateway()
	allowed := make(map[token.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := authenticate(w, r, gw, loginURL)
			if !ok {
				return
			}
			p, _ := portalauth.PrincipalFromContext(r.Context())
			if _, ok := allowed[p.Role]; !ok {
				httperr.WriteKind(w, r, portalauth.KindInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate reuses a principal placed by an outer middleware, so stacking
// RequireAuth and RequireAdmin resolves credentials once.
func authenticate(w http.ResponseWriter, r *http.Request, gw *portalauth.Gateway, loginURL string) (*http.Request, bool) {
	if _, ok := portalauth.PrincipalFromContext(r.Context()); ok {
		return r, true
	}

	res := gw.Authenticate(r)
	if !res.Authenticated {
		if status, _ := httperr.StatusForGateway(res.Reason); status == http.StatusUnauthorized && loginURL != "" && wantsHTML(r) {
			http.Redirect(w, r, loginURL, http.StatusFound)
			return r, false
		}
		httperr.WriteGatewayFailure(w, r, res.Reason)
		return r, false
	}
	return r.WithContext(portalauth.WithPrincipal(r.Context(), res.Principal)), true
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
