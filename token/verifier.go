package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks structure, signature and expiry of tokens. It never
// consults revocation state.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. The secret is copied.
func NewVerifier(secret []byte, opts ...Option) (*Verifier, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Verifier{secret: append([]byte(nil), secret...), now: o.now}, nil
}

// Verify returns the claims of a well-formed, correctly signed, unexpired token.
//
// The order of checks is fixed: wire shape, signature, then header and claims
// decoding, then expiry. A token with any altered byte fails with
// [ErrSignatureMismatch] before its payload is interpreted.
func (v *Verifier) Verify(tok string) (Claims, error) {
	seg, err := Split(tok)
	if err != nil {
		return Claims{}, err
	}
	sig, err := b64.DecodeString(seg.Signature)
	if err != nil {
		return Claims{}, ErrSignatureMismatch
	}
	if err := jwt.SigningMethodHS256.Verify(seg.SigningInput(), sig, v.secret); err != nil {
		return Claims{}, ErrSignatureMismatch
	}

	_, claims, err := decodeSegments(seg)
	if err != nil {
		return Claims{}, err
	}
	if claims.ExpiresAt < v.now().Unix() {
		return Claims{}, ErrExpired
	}
	return claims, nil
}

// VerifyType is Verify plus a token_type check.
func (v *Verifier) VerifyType(tok string, want Type) (Claims, error) {
	claims, err := v.Verify(tok)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != want {
		return Claims{}, ErrInvalidTokenType
	}
	return claims, nil
}
