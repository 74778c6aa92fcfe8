package token

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// Role is the coarse account role carried in claims.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCompany  Role = "company"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCompany, RoleEmployee:
		return true
	default:
		return false
	}
}

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

const (
	// Algorithm is the only accepted "alg" header value.
	Algorithm = "HS256"
	// HeaderType is the only accepted "typ" header value.
	HeaderType = "JWT"
)

// Header is the token header. Fields are declared in sorted key order so the
// JSON form is canonical.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// DefaultHeader returns {"alg":"HS256","typ":"JWT"}.
func DefaultHeader() Header {
	return Header{Alg: Algorithm, Typ: HeaderType}
}

// Claims is the token payload. Fields are declared in sorted key order so the
// JSON form is canonical and signatures are reproducible.
type Claims struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
	TokenID   string `json:"jti,omitempty"`
	Role      Role   `json:"role"`
	TokenType Type   `json:"token_type"`
	UserID    int64  `json:"user_id"`
}

// wireClaims is the decoding shape. Pointers make missing required keys
// distinguishable from zero values.
type wireClaims struct {
	Email     string `json:"email"`
	ExpiresAt *int64 `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
	TokenID   string `json:"jti"`
	Role      Role   `json:"role"`
	TokenType Type   `json:"token_type"`
	UserID    *int64 `json:"user_id"`
}

func (w wireClaims) claims() (Claims, error) {
	if w.UserID == nil || *w.UserID <= 0 || w.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}
	if *w.ExpiresAt <= w.IssuedAt {
		return Claims{}, ErrMalformed
	}
	if w.Role != "" && !w.Role.Valid() {
		return Claims{}, ErrMalformed
	}

	typ := w.TokenType
	switch typ {
	case "":
		// tokens minted before the type marker existed were access tokens
		typ = TypeAccess
	case TypeAccess, TypeRefresh:
	default:
		return Claims{}, ErrMalformed
	}

	return Claims{
		Email:     w.Email,
		ExpiresAt: *w.ExpiresAt,
		IssuedAt:  w.IssuedAt,
		TokenID:   w.TokenID,
		Role:      w.Role,
		TokenType: typ,
		UserID:    *w.UserID,
	}, nil
}

// NewTokenID returns a random 128-bit identifier encoded as base64url. It keeps
// two tokens minted for the same identity within one second distinct.
func NewTokenID() (string, error) {
	var b [16]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
