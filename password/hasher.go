package password

// Hasher verifies Argon2id and bcrypt hashes and produces Argon2id hashes.
// It is safe for concurrent use.
type Hasher struct {
	argon  *Argon2
	bcrypt Bcrypt
}

// NewHasher returns a Hasher producing hashes with params.
func NewHasher(params Argon2Params) (*Hasher, error) {
	a, err := NewArgon2(params)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a, bcrypt: Bcrypt{}}, nil
}

// Hash returns a new Argon2id hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify reports whether password matches encoded, whatever its format.
// A mismatch is (false, nil); an unparseable hash is an error.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return h.bcrypt.Verify(password, encoded)
	}
	return h.argon.Verify(password, encoded)
}

// NeedsRehash reports whether encoded should be replaced with a fresh
// Argon2id hash after a successful verification.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	return h.argon.NeedsRehash(encoded)
}
