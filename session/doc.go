// Package session provides Redis-backed server-side sessions for the portal.
//
// # Storage layout
//
// Each session is one Redis hash at "<prefix>:<id>" holding the identity
// captured at login, the access token minted with it and two unix-millisecond
// timestamps (login_time, last_activity). The key TTL is the idle timeout and
// is slid forward by [Store.Touch], but never past the absolute lifetime
// counted from login_time.
//
// Creation and touch run as Lua scripts so that an id is never overwritten and
// a destroyed session is never resurrected by a concurrent touch.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT verify
// tokens or make authorization decisions; those belong to the root package.
//
// # What this package must NOT do
//
//   - Import portalauth or token (no upward imports).
//   - Log or expose the stored access token.
package session
