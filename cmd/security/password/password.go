package password

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash validates password against the policy and hashes it with the
// configured scheme.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	return c.hash(password)
}

// DummyHash returns a hash of a random secret using the configured scheme.
// Callers verify against it when no account exists, so the miss path costs
// the same as a real mismatch.
func (c Config) DummyHash() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("dummy: %w", err)
	}
	return c.hash(hex.EncodeToString(b))
}

func (c Config) hash(password string) (string, error) {
	switch c.Scheme {
	case SchemeArgon2id, "":
		return c.hashArgon2id(password)
	case SchemeBcrypt:
		return c.hashBcrypt(password)
	default:
		return "", ErrUnknownScheme
	}
}

// Verify checks whether password matches the given encoded hash.
// Both Argon2id PHC strings and bcrypt strings are accepted.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	switch schemeOf(encodedHash) {
	case SchemeArgon2id:
		return c.verifyArgon2id(encodedHash, password)
	case SchemeBcrypt:
		return verifyBcrypt(encodedHash, password)
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encodedHash was produced with a different
// scheme or weaker parameters than the current config.
func (c Config) NeedsRehash(encodedHash string) bool {
	want := c.Scheme
	if want == "" {
		want = SchemeArgon2id
	}

	switch schemeOf(encodedHash) {
	case SchemeArgon2id:
		if want != SchemeArgon2id {
			return true
		}
		p, _, _, err := decode(encodedHash)
		if err != nil {
			return true
		}
		return p.MemoryKiB < c.Params.MemoryKiB ||
			p.Iterations < c.Params.Iterations ||
			p.KeyLength < c.Params.KeyLength
	case SchemeBcrypt:
		if want != SchemeBcrypt {
			return true
		}
		cost, err := bcryptCost(encodedHash)
		if err != nil {
			return true
		}
		return cost < c.BcryptCost
	default:
		return true
	}
}

func schemeOf(encoded string) Scheme {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return SchemeArgon2id
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		return SchemeBcrypt
	default:
		return ""
	}
}
