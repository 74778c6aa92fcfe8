// Package portalauth is the authentication and authorization core of the
// intranet portal.
//
// Callers resolve the identity behind a request with [Gateway.Authenticate]
// (or middleware.RequireAuth) and restrict privileged routes with
// [AdminGuard.Require] (or middleware.RequireAdmin). Login, refresh, logout
// and the "who am I" lookup are orchestrated by [Engine], built through
// [Builder].
//
// # Credentials
//
// A request may carry a bearer token, a token cookie, a session cookie or,
// in development only, a query parameter. Tokens are verified statelessly
// and then checked against the revocation store. When no valid token is
// present the server-side session is used instead.
//
// # Architecture boundaries
//
// portalauth is the public surface. Token encoding lives in token, stores in
// session and revocation, pair issuance in refresh. Those packages never
// import portalauth.
//
// # What this package must NOT do
//
//   - Log token strings or passwords.
//   - Keep per-request state in package variables; the session id travels in
//     an explicit [SessionContext].
//   - Fall back to a built-in signing secret.
package portalauth
