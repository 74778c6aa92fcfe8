package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/internal/httperr"
	"github.com/intranetkit/portalauth/internal/logging"
)

type handlers struct {
	engine *portalauth.Engine
	cfg    portalauth.Config
	ready  func(context.Context) error
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeValid(w, r, &req) {
		return
	}

	sc := portalauth.SessionFromRequest(r, h.cfg.HTTP.SessionCookie)
	res, err := h.engine.Login(r.Context(), req.Email, req.Password, sc)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.writeSessionCookie(w, sc)
	httperr.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    seconds(h.cfg.Token.AccessTTL),
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeValid(w, r, &req) {
		return
	}

	res, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    seconds(h.cfg.Token.AccessTTL),
	})
}

// logout always answers 200. An unreadable body is ignored; the bearer
// header and session cookie still apply.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeOptional(w, r, &req); err != nil {
		logging.From(r.Context()).DebugContext(r.Context(), "logout body ignored")
	}

	creds := h.engine.Gateway().ExtractCredentials(r)
	access := creds.Bearer
	if access == "" {
		access = req.Token
	}
	if access == "" {
		access = creds.Cookie
	}

	sc := portalauth.SessionFromRequest(r, h.cfg.HTTP.SessionCookie)
	res := h.engine.Logout(r.Context(), portalauth.LogoutRequest{
		AccessToken:  access,
		RefreshToken: req.RefreshToken,
	}, sc)

	h.writeSessionCookie(w, sc)
	if creds.Cookie != "" {
		h.expireCookie(w, h.cfg.HTTP.TokenCookie)
	}
	httperr.WriteJSON(w, http.StatusOK, logoutResponse{TokenRevoked: res.TokenRevoked})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, _ := portalauth.PrincipalFromContext(r.Context())
	p, err := h.engine.Me(r.Context(), p)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, p)
}

func (h *handlers) adminPing(w http.ResponseWriter, r *http.Request) {
	p, _ := portalauth.PrincipalFromContext(r.Context())
	httperr.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"user_id": p.UserID,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logging.From(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
			httperr.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSessionCookie mirrors sc into the session cookie when login or logout
// changed it.
func (h *handlers) writeSessionCookie(w http.ResponseWriter, sc *portalauth.SessionContext) {
	if !sc.Changed() {
		return
	}
	if !sc.Present() {
		h.expireCookie(w, h.cfg.HTTP.SessionCookie)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.HTTP.SessionCookie,
		Value:    sc.ID,
		Path:     "/",
		MaxAge:   int(h.cfg.Session.AbsoluteTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.HTTP.SecureCookies,
		SameSite: h.cfg.HTTP.SameSite,
	})
}

func (h *handlers) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.HTTP.SecureCookies,
		SameSite: h.cfg.HTTP.SameSite,
	})
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
