package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/password"
	"github.com/intranetkit/portalauth/token"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type users map[int64]portalauth.UserRecord

func (u users) GetByID(_ context.Context, id int64) (portalauth.UserRecord, error) {
	rec, ok := u[id]
	if !ok {
		return portalauth.UserRecord{}, portalauth.ErrUserNotFound
	}
	return rec, nil
}

func (u users) GetByEmail(_ context.Context, email string) (portalauth.UserRecord, error) {
	for _, rec := range u {
		if rec.Email == email {
			return rec, nil
		}
	}
	return portalauth.UserRecord{}, portalauth.ErrUserNotFound
}

func newEngine(t *testing.T, store users) *portalauth.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := portalauth.DefaultConfig()
	cfg.Secret = []byte(strings.Repeat("m", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	e, err := portalauth.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(store).Build()
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func seedUsers(t *testing.T) users {
	t.Helper()

	h, err := password.NewArgon2(password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	hash, err := h.Hash("pw-123456")
	require.NoError(t, err)

	return users{
		1: {ID: 1, Email: "admin@example.com", PasswordHash: hash, Role: token.RoleAdmin, AccountState: portalauth.AccountActive},
		2: {ID: 2, Email: "emp@example.com", PasswordHash: hash, Role: token.RoleEmployee, AccountState: portalauth.AccountActive},
		3: {ID: 3, Email: "new@example.com", PasswordHash: hash, Role: token.RoleAdmin, AccountState: portalauth.AccountPending},
	}
}

func accessToken(t *testing.T, e *portalauth.Engine, email string) string {
	t.Helper()
	res, err := e.Login(context.Background(), email, "pw-123456", &portalauth.SessionContext{})
	require.NoError(t, err)
	return res.AccessToken
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := portalauth.PrincipalFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", p.Email)
		w.Header().Set("X-State", string(p.AccountState))
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, tok, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	store := seedUsers(t)
	e := newEngine(t, store)
	h := RequireAuth(e)(okHandler(t))

	rec := serve(h, accessToken(t, e, "emp@example.com"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "emp@example.com", rec.Header().Get("X-User"))

	rec = serve(h, "", "application/json")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"unauthenticated"`)

	rec = serve(h, "", "text/html,application/xhtml+xml")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAdmin(t *testing.T) {
	store := seedUsers(t)
	e := newEngine(t, store)
	h := RequireAdmin(e)(okHandler(t))

	rec := serve(h, accessToken(t, e, "admin@example.com"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(portalauth.AccountActive), rec.Header().Get("X-State"))

	rec = serve(h, accessToken(t, e, "emp@example.com"), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient permissions")

	// browsers are redirected only when unauthenticated, never when forbidden
	rec = serve(h, accessToken(t, e, "emp@example.com"), "text/html")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminRejectsRefreshToken(t *testing.T) {
	store := seedUsers(t)
	e := newEngine(t, store)
	h := RequireAdmin(e)(okHandler(t))

	res, err := e.Login(context.Background(), "admin@example.com", "pw-123456", &portalauth.SessionContext{})
	require.NoError(t, err)

	rec := serve(h, res.RefreshToken, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"unauthenticated"`)

	rec = serve(h, res.RefreshToken, "text/html")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAdminPendingAccount(t *testing.T) {
	store := seedUsers(t)
	e := newEngine(t, store)
	h := RequireAdmin(e)(okHandler(t))

	// approve long enough to log in, then revert to pending
	pending := store[3]
	approved := pending
	approved.AccountState = portalauth.AccountActive
	store[3] = approved
	tok := accessToken(t, e, "new@example.com")
	store[3] = pending

	rec := serve(h, tok, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "account not approved")
}

func TestRequireRole(t *testing.T) {
	store := seedUsers(t)
	e := newEngine(t, store)
	h := RequireRole(e, token.RoleEmployee, token.RoleCompany)(okHandler(t))

	require.Equal(t, http.StatusOK, serve(h, accessToken(t, e, "emp@example.com"), "").Code)
	require.Equal(t, http.StatusForbidden, serve(h, accessToken(t, e, "admin@example.com"), "").Code)
}

func TestStackedMiddlewareAuthenticatesOnce(t *testing.T) {
	store := seedUsers(t)
	e := newEngine(t, store)
	h := RequireAuth(e)(RequireAdmin(e)(okHandler(t)))

	before := e.MetricsSnapshot().Counters[portalauth.MetricAuthTokenSuccess]
	rec := serve(h, accessToken(t, e, "admin@example.com"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, before+1, e.MetricsSnapshot().Counters[portalauth.MetricAuthTokenSuccess])
}
