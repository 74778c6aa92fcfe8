package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted, in bytes.
const MinSecretLength = 32

// Option configures a [Signer] or [Verifier].
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func checkSecret(secret []byte) error {
	if len(secret) == 0 {
		return ErrSecretRequired
	}
	if len(secret) < MinSecretLength {
		return ErrSecretTooShort
	}
	return nil
}

// Signer mints HS256 tokens. It is safe for concurrent use.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer for secret. The secret is copied.
func NewSigner(secret []byte, opts ...Option) (*Signer, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Signer{secret: append([]byte(nil), secret...), now: o.now}, nil
}

// Sign computes HMAC-SHA256 over headerB64 "." payloadB64 and returns the
// base64url signature segment.
func (s *Signer) Sign(headerB64, payloadB64 string) (string, error) {
	return sign(headerB64+"."+payloadB64, s.secret)
}

// Mint encodes claims under the default header and signs them. A missing
// TokenID is generated and a zero IssuedAt is set to the signer's clock.
func (s *Signer) Mint(claims Claims) (string, error) {
	if claims.UserID <= 0 {
		return "", ErrMalformed
	}
	if claims.IssuedAt == 0 {
		claims.IssuedAt = s.now().Unix()
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		return "", ErrMalformed
	}
	if claims.TokenType == "" {
		claims.TokenType = TypeAccess
	}
	if claims.TokenID == "" {
		id, err := NewTokenID()
		if err != nil {
			return "", err
		}
		claims.TokenID = id
	}

	input, err := Encode(DefaultHeader(), claims)
	if err != nil {
		return "", err
	}
	sig, err := sign(input, s.secret)
	if err != nil {
		return "", err
	}
	return input + "." + sig, nil
}

// Issue mints a token of type typ for the given identity, valid for ttl from now.
func (s *Signer) Issue(userID int64, email string, role Role, typ Type, ttl time.Duration) (string, Claims, error) {
	now := s.now().Unix()
	claims := Claims{
		Email:     email,
		ExpiresAt: now + int64(ttl/time.Second),
		IssuedAt:  now,
		Role:      role,
		TokenType: typ,
		UserID:    userID,
	}
	id, err := NewTokenID()
	if err != nil {
		return "", Claims{}, err
	}
	claims.TokenID = id
	tok, err := s.Mint(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return tok, claims, nil
}

func sign(signingInput string, secret []byte) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(signingInput, secret)
	if err != nil {
		return "", err
	}
	return b64.EncodeToString(sig), nil
}
