// Package token provides device-token generation and hashing for unet.
//
// It is the single source of truth for device-token hashing behavior.
//
// Design goals:
// - Tokens are opaque bearer strings: DefaultBytes of crypto/rand output, hex-encoded.
// - Default dev/back-compat mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
// - Stable 64-char hex output for storage and unique-index lookup.
//
// Environment:
// - UNET_TOKEN_HMAC_KEY: when set, enables HMAC mode.
// Policy:
//   - If UNET_REQUIRE_TOKEN_HMAC=true, startup MUST enforce a minimum key size
//     (>= MinHMACKeyBytes) and MUST use HMAC (no SHA fallback).
package token
