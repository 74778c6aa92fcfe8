package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies bcrypt hashes. "$2y$" hashes written by PHP's
// password_hash are accepted; the algorithm is identical to "$2a$".
type Bcrypt struct{}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func normalizeBcrypt(encoded string) string {
	if strings.HasPrefix(encoded, "$2y$") {
		return "$2a$" + encoded[len("$2y$"):]
	}
	return encoded
}

// Verify reports whether password matches the bcrypt hash encoded.
func (b Bcrypt) Verify(password, encoded string) (bool, error) {
	if !isBcrypt(encoded) {
		return false, ErrUnsupportedHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(normalizeBcrypt(encoded)), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, errors.Join(ErrInvalidHash, err)
	}
}
