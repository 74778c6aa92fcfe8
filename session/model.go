package session

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"regexp"
	"time"
)

// Record is the identity written when a session is created.
type Record struct {
	UserID      int64
	Email       string
	Role        string
	CompanyName string
	AccessToken string
}

// Session is a stored session as read back from Redis.
type Session struct {
	ID           string
	UserID       int64
	Email        string
	Role         string
	CompanyName  string
	AccessToken  string
	LoginTime    time.Time
	LastActivity time.Time
}

// Valid reports whether the session carries enough identity to authenticate
// a request on its own.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != 0 && s.Role != ""
}

// idBytes is the entropy of a session id: 256 bits.
const idBytes = 32

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

// NewID returns a fresh random session id.
func NewID() (string, error) {
	var b [idBytes]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// ValidID reports whether id has the shape produced by NewID. Cookie values
// failing this check are rejected without a Redis round trip.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
