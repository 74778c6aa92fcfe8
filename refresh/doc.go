// Package refresh issues access/refresh token pairs and exchanges a refresh
// token for a new access token.
//
// # Rotation
//
// By default a refresh token stays valid until it expires or is revoked at
// logout. With [Config.Rotate] the presented token is revoked on use and a new
// refresh token is returned alongside the access token. Revocation is an
// atomic add, so when the same refresh token is presented concurrently only
// one exchange succeeds.
//
// # Architecture boundaries
//
// This package owns pair issuance and the exchange rules. It reads revocation
// state through [Revocations] and never touches sessions or the user store;
// the Engine supplies a live identity lookup when it needs one.
package refresh
