package token

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestNewDeviceToken_Shape(t *testing.T) {
	tok, err := NewDeviceToken()
	if err != nil {
		t.Fatalf("NewDeviceToken error: %v", err)
	}
	if len(tok) != 2*DefaultBytes {
		t.Fatalf("len = %d, want %d", len(tok), 2*DefaultBytes)
	}
	if _, err := hex.DecodeString(tok); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}

	other, err := NewDeviceToken()
	if err != nil {
		t.Fatalf("NewDeviceToken error: %v", err)
	}
	if tok == other {
		t.Fatalf("expected distinct tokens")
	}
}

func TestNew_SizeBounds(t *testing.T) {
	for _, n := range []int{0, MinBytes - 1, 4096} {
		if _, err := New(n); !errors.Is(err, ErrTokenSize) {
			t.Fatalf("New(%d): expected ErrTokenSize, got %v", n, err)
		}
	}
	tok, err := New(MinBytes)
	if err != nil {
		t.Fatalf("New(%d) error: %v", MinBytes, err)
	}
	if len(tok) != 2*MinBytes {
		t.Fatalf("len = %d", len(tok))
	}
}

func TestHashDeviceTokenHex_SHAFallback(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	got := HashDeviceTokenHex("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if HMACEnabled() {
		t.Fatalf("expected HMAC disabled")
	}
}

func TestHashDeviceTokenHex_HMAC(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	t.Setenv(HMACEnvKey, key)

	got := HashDeviceTokenHex("abc")
	if got != HashHMACSHA256Hex("abc", []byte(key)) {
		t.Fatalf("expected HMAC digest")
	}
	if got == HashSHA256Hex("abc") {
		t.Fatalf("HMAC digest must differ from plain SHA-256")
	}
	if len(got) != 64 {
		t.Fatalf("len = %d, want 64", len(got))
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "  ")
	if _, err := HMACKeyFromEnv(MinHMACKeyBytes); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(MinHMACKeyBytes); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	k, err := HMACKeyFromEnv(MinHMACKeyBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("len = %d", len(k))
	}
}
