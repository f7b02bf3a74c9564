package app

import (
	"errors"
	"net/http"

	"unet/cmd/security/token"
)

// ValidateSecurityConfig enforces the token-digest policy at startup.
// Startup fails rather than silently falling back to plain SHA-256.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(token.MinHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: UNET_REQUIRE_TOKEN_HMAC=true but UNET_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: UNET_REQUIRE_TOKEN_HMAC=true but UNET_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: UNET_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return nil
}

// WithSecurityHeaders sets conservative response headers for a JSON API.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
