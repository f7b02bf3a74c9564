package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names the algorithm used for newly produced hashes.
type Scheme string

const (
	// SchemeArgon2id produces $argon2id$ PHC strings.
	SchemeArgon2id Scheme = "argon2id"
	// SchemeBcrypt produces $2a$ bcrypt strings (legacy backend format).
	SchemeBcrypt Scheme = "bcrypt"
)

// MinBcryptCost is the lowest bcrypt cost accepted from configuration.
const MinBcryptCost = 10

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy is the password strength rule.
type Policy struct {
	MinLength int
	MaxLength int
	// RequireClasses demands one upper, one lower, one digit and one non-word character.
	RequireClasses bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Scheme     Scheme
	Params     Argon2idParams
	BcryptCost int
	Policy     Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	// Parallelism is clamped to [1..4] to keep container usage predictable.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Scheme: SchemeArgon2id,
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: MinBcryptCost,
		Policy: Policy{
			MinLength:      8,
			MaxLength:      50,
			RequireClasses: true,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
// - UNET_PASSWORD_HASHER (argon2id|bcrypt)
// - UNET_PASSWORD_MIN_LEN
// - UNET_PASSWORD_MAX_LEN
// - UNET_BCRYPT_COST
// - UNET_ARGON2_MEMORY_KIB
// - UNET_ARGON2_ITERATIONS
// - UNET_ARGON2_PARALLELISM
// - UNET_ARGON2_SALT_LEN
// - UNET_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("UNET_PASSWORD_HASHER"); ok {
		s, err := ParseScheme(v)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_PASSWORD_HASHER: %w", err)
		}
		cfg.Scheme = s
	}

	if v, ok := os.LookupEnv("UNET_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("UNET_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("UNET_BCRYPT_COST"); ok {
		n, err := atoiInRange(v, MinBcryptCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = n
	}

	if v, ok := os.LookupEnv("UNET_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("UNET_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("UNET_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = u
	}

	if v, ok := os.LookupEnv("UNET_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_ARGON2_PARALLELISM: %w", err)
		}
		if u > math.MaxUint8 {
			return Config{}, fmt.Errorf("UNET_ARGON2_PARALLELISM: out of range")
		}
		cfg.Params.Parallelism = uint8(u)
	}

	if v, ok := os.LookupEnv("UNET_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_ARGON2_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = u
	}

	if v, ok := os.LookupEnv("UNET_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_ARGON2_KEY_LEN: %w", err)
		}
		cfg.Params.KeyLength = u
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

// ParseScheme maps a configuration string to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeArgon2id, "":
		return SchemeArgon2id, nil
	case SchemeBcrypt:
		return SchemeBcrypt, nil
	default:
		return "", ErrUnknownScheme
	}
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
