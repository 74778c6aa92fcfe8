// Package rate implements the Redis fixed-window counters behind login
// throttling.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Failed attempts are counted
// per identifier and, when enabled, per client IP. Once a counter reaches
// MaxAttempts further logins are refused until the window ends; a successful
// login clears the identifier counter.
//
// Identifiers are lower-cased and hashed before they become part of a key so
// that e-mail addresses never appear in Redis.
package rate
