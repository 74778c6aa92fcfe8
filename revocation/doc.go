// Package revocation records tokens that must no longer be accepted before
// their natural expiry.
//
// Entries are keyed by the hex SHA-256 of the full token string and live until
// the token's own expires_at, after which they read as absent. Two backends are
// provided: [RedisStore], where key TTL does the cleanup, and [PostgresStore],
// which needs a periodic [Janitor] to purge lapsed rows.
//
// # Architecture boundaries
//
// The package does not verify tokens. Callers pass the expiry they already
// validated; an already expired token is never stored.
package revocation
