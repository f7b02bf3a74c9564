package account

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"unet/cmd/security/token"
)

// Config holds the service's tunables.
type Config struct {
	// DeviceTTL bounds device lifetime. Zero means devices never expire.
	DeviceTTL time.Duration

	// RevokeDevicesOnPasswordChange deletes the account's other devices after
	// a successful ChangePassword. The authorizing device stays valid.
	RevokeDevicesOnPasswordChange bool

	// TokenBytes is the randomness per device token (hex doubles the length).
	TokenBytes int
}

// DefaultConfig keeps devices forever and leaves other devices alone on password change.
func DefaultConfig() Config {
	return Config{
		DeviceTTL:                     0,
		RevokeDevicesOnPasswordChange: false,
		TokenBytes:                    token.DefaultBytes,
	}
}

// LoadConfigFromEnv reads:
//   - UNET_DEVICE_TTL (Go duration, unset or 0 = no expiry)
//   - UNET_REVOKE_DEVICES_ON_PASSWORD_CHANGE (bool)
//   - UNET_DEVICE_TOKEN_BYTES (int, 32..1024)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("UNET_DEVICE_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("UNET_DEVICE_TTL: invalid duration %q", v)
		}
		cfg.DeviceTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("UNET_REVOKE_DEVICES_ON_PASSWORD_CHANGE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("UNET_REVOKE_DEVICES_ON_PASSWORD_CHANGE: invalid bool %q", v)
		}
		cfg.RevokeDevicesOnPasswordChange = b
	}

	if v := strings.TrimSpace(os.Getenv("UNET_DEVICE_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < token.MinBytes || n > token.MaxBytes {
			return Config{}, fmt.Errorf("UNET_DEVICE_TOKEN_BYTES: must be an integer in [%d..%d]", token.MinBytes, token.MaxBytes)
		}
		cfg.TokenBytes = n
	}

	return cfg, nil
}
