// Package token implements the three-part signed token used by portalauth:
// base64url(header) "." base64url(claims) "." base64url(HMAC-SHA256).
//
// # Architecture boundaries
//
// The package is pure. [Encode] and [Decode] serialize and parse the wire form,
// [Signer] mints tokens and [Verifier] checks structure, signature and expiry.
// Nothing here performs I/O: revocation and session lookups belong to the
// Gateway in the root package.
//
// # Validation policy
//
// Every segment is pattern-checked against ^[A-Za-z0-9_-]+$ before any
// decoding happens, and the signature is compared in constant time before the
// claims JSON is parsed. A token altered in any segment therefore fails with
// [ErrSignatureMismatch] rather than with a decoding error.
package token
