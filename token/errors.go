package token

import "errors"

var (
	// ErrMalformed is returned when a token does not have three non-empty
	// base64url segments, or when its header or claims violate the format.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidEncoding is returned when a segment is not valid base64url or
	// does not hold valid JSON.
	ErrInvalidEncoding = errors.New("invalid token encoding")
	// ErrSignatureMismatch is returned when the signature does not match the
	// signing input under the configured secret.
	ErrSignatureMismatch = errors.New("token signature mismatch")
	// ErrExpired is returned when expires_at lies in the past.
	ErrExpired = errors.New("token expired")
	// ErrInvalidTokenType is returned when an access token is presented where a
	// refresh token is expected, or the other way round.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrSecretRequired is returned when a signer or verifier is built without a secret.
	ErrSecretRequired = errors.New("token secret required")
	// ErrSecretTooShort is returned when the secret is shorter than MinSecretLength.
	ErrSecretTooShort = errors.New("token secret too short")
)
