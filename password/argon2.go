package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonID = "argon2id"

	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

var (
	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrUnsupportedHash is returned for hash formats this package does not know.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the OWASP recommendation: 64 MiB, 3 passes.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Validate rejects parameters below the supported floor.
func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("password: argon2 memory must be >= %d KB", minMemoryKB)
	case p.Time < 1:
		return errors.New("password: argon2 time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("password: argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("password: argon2 salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("password: argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}

// Argon2 hashes and verifies Argon2id PHC strings.
type Argon2 struct {
	params Argon2Params
}

// NewArgon2 returns an Argon2 using params.
func NewArgon2(params Argon2Params) (*Argon2, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{params: params}, nil
}

// Hash returns the PHC encoding of a fresh Argon2id hash of password.
// The password bytes are used as given, without normalization.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonID,
		argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the PHC string encoded.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	phc, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), phc.salt, phc.params.Time, phc.params.Memory, phc.params.Parallelism, phc.params.KeyLength)
	return subtle.ConstantTimeCompare(candidate, phc.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the configured ones.
func (a *Argon2) NeedsRehash(encoded string) bool {
	phc, err := decodeArgon2(encoded)
	if err != nil {
		return true
	}
	stored := phc.params
	return stored.Memory < a.params.Memory ||
		stored.Time < a.params.Time ||
		stored.Parallelism < a.params.Parallelism ||
		stored.KeyLength != a.params.KeyLength
}

type argon2PHC struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeArgon2(encoded string) (*argon2PHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrInvalidHash
	}
	if parts[1] != argonID {
		return nil, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}
	if p.Memory < minMemoryKB || p.Time < 1 || p.Parallelism < 1 {
		return nil, fmt.Errorf("%w: parameters below floor", ErrInvalidHash)
	}

	salt, err := decodeB64(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	key, err := decodeB64(parts[5])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return &argon2PHC{params: p, salt: salt, key: key}, nil
}

// decodeB64 accepts both unpadded (PHC reference) and padded standard base64.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
