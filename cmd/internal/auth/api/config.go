package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API transport behavior.
type Config struct {
	// TrustProxy honors X-Forwarded-For / X-Real-IP for the client IP.
	TrustProxy bool
	// MaxBodyBytes caps request bodies (JSON and form).
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// LoadConfigFromEnv loads auth API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	return Config{
		TrustProxy:   envBool("UNET_TRUST_PROXY", false),
		MaxBodyBytes: envInt64("UNET_MAX_BODY_BYTES", defaultMaxBodyBytes),
	}
}

func (c Config) maxBodyBytes() int64 {
	if c.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return c.MaxBodyBytes
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
