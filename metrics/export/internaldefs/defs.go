package internaldefs

import (
	"github.com/intranetkit/portalauth"
)

type CounterDef struct {
	ID   portalauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   portalauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: portalauth.MetricLoginSuccess, Name: "portalauth_login_success_total", Help: "Successful logins."},
	{ID: portalauth.MetricLoginFailure, Name: "portalauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: portalauth.MetricLoginRateLimited, Name: "portalauth_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: portalauth.MetricLoginInactive, Name: "portalauth_login_inactive_total", Help: "Logins rejected because the account is not active."},
	{ID: portalauth.MetricRefreshSuccess, Name: "portalauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: portalauth.MetricRefreshFailure, Name: "portalauth_refresh_failure_total", Help: "Failed refreshes."},
	{ID: portalauth.MetricRefreshRevoked, Name: "portalauth_refresh_revoked_total", Help: "Refreshes presenting a revoked token."},
	{ID: portalauth.MetricLogout, Name: "portalauth_logout_total", Help: "Logout requests."},
	{ID: portalauth.MetricTokenRevoked, Name: "portalauth_token_revoked_total", Help: "Tokens newly added to the revocation store."},
	{ID: portalauth.MetricSessionCreated, Name: "portalauth_session_created_total", Help: "Sessions created."},
	{ID: portalauth.MetricSessionDestroyed, Name: "portalauth_session_destroyed_total", Help: "Sessions destroyed."},
	{ID: portalauth.MetricAuthTokenSuccess, Name: "portalauth_auth_token_success_total", Help: "Requests authenticated by token."},
	{ID: portalauth.MetricAuthSessionSuccess, Name: "portalauth_auth_session_success_total", Help: "Requests authenticated by session fallback."},
	{ID: portalauth.MetricAuthFailure, Name: "portalauth_auth_failure_total", Help: "Requests that failed authentication."},
	{ID: portalauth.MetricAuthRevoked, Name: "portalauth_auth_revoked_total", Help: "Requests presenting a revoked token."},
	{ID: portalauth.MetricAuthStoreUnavailable, Name: "portalauth_auth_store_unavailable_total", Help: "Requests failed closed on a store error."},
	{ID: portalauth.MetricAdminAllowed, Name: "portalauth_admin_allowed_total", Help: "Requests admitted by the admin guard."},
	{ID: portalauth.MetricAdminDenied, Name: "portalauth_admin_denied_total", Help: "Requests denied by the admin guard."},
}

var HistogramDefs = []HistogramDef{
	{ID: portalauth.MetricAuthenticateLatency, Name: "portalauth_authenticate_latency_seconds", Help: "Request authentication latency."},
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "portalauth_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing entries.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
