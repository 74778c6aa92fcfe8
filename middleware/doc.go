// Package middleware adapts portalauth to net/http.
//
//   - [RequireAuth] resolves the caller through the Engine's Gateway and stores
//     the principal in the request context.
//   - [RequireAdmin] additionally runs the AdminGuard, re-reading the account.
//   - [RequireRole] admits any of a set of roles from the credential alone.
//
// Unauthenticated browser requests (Accept: text/html) are redirected to the
// configured login URL; other clients get a 401 JSON body. Authenticated
// callers without the required role get 403.
//
// This package makes no authentication decisions of its own.
package middleware
