package identity

import "unet/cmd/security/token"

// Device-token hashing is delegated to cmd/security/token.
// Output is always a 64-char hex string.
//
// Recommendation (prod):
// - Set UNET_TOKEN_HMAC_KEY to a long random secret (>= 32 bytes).

// HashDeviceTokenHex returns the server-stored hash for a device token.
func HashDeviceTokenHex(tokenStr string) string { return token.HashDeviceTokenHex(tokenStr) }
