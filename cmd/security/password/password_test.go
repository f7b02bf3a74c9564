package password

import (
	"strings"
	"testing"
)

// cheapConfig keeps hashing fast in tests.
func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding: %q", h)
	}

	ok, err := cfg.Verify(h, "Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "Wr0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	cfg := cheapConfig()

	a, err := cfg.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestBcrypt_HashAndVerify(t *testing.T) {
	cfg := cheapConfig()
	cfg.Scheme = SchemeBcrypt

	h, err := cfg.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$2a$10$") {
		t.Fatalf("unexpected encoding: %q", h)
	}

	ok, err := cfg.Verify(h, "Str0ng-Passw0rd!")
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = cfg.Verify(h, "Wr0ng-Passw0rd!")
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestVerify_LegacyBcryptUnderArgonConfig(t *testing.T) {
	legacy := cheapConfig()
	legacy.Scheme = SchemeBcrypt
	h, err := legacy.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cfg := cheapConfig()
	ok, err := cfg.Verify(h, "Str0ng-Passw0rd!")
	if err != nil || !ok {
		t.Fatalf("expected legacy bcrypt hash to verify, ok=%v err=%v", ok, err)
	}
	if !cfg.NeedsRehash(h) {
		t.Fatalf("expected bcrypt hash to need rehash under argon2id config")
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh hash should not need rehash")
	}

	stronger := cfg
	stronger.Params.Iterations = 2
	if !stronger.NeedsRehash(h) {
		t.Fatalf("expected rehash when iterations increase")
	}

	if !cfg.NeedsRehash("garbage") {
		t.Fatalf("expected rehash for unknown format")
	}
}

func TestDummyHash_VerifiesNothingUseful(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.DummyHash()
	if err != nil {
		t.Fatalf("DummyHash error: %v", err)
	}
	ok, err := cfg.Verify(h, "Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("dummy hash must not match")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := cheapConfig()

	for _, h := range []string{
		"not-a-hash",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$2a$10$short",
	} {
		ok, err := cfg.Verify(h, "whatever")
		if err != ErrInvalidHash {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", h, err)
		}
		if ok {
			t.Fatalf("%q: expected false", h)
		}
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	big := cheapConfig()
	big.Params.MemoryKiB = 64 * 1024

	h, err := big.Hash("Str0ng-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	small := cheapConfig()
	if _, err := small.Verify(h, "Str0ng-Passw0rd!"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}
