package app

import (
	"fmt"
	"strings"
	"time"
)

// Store backends selectable with UNET_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	Store string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	SQLitePath string

	// Migrate runs the embedded migrations for the selected backend at startup.
	Migrate bool

	// If true, UNET_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and device-token
	// digests must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("UNET_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("UNET_LOG_LEVEL", "info"),
		LogFormat: EnvString("UNET_LOG_FORMAT", "json"),
		LogColor:  EnvBool("UNET_LOG_COLOR", false),

		ReadHeaderTimeout: EnvDuration("UNET_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("UNET_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("UNET_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("UNET_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("UNET_HTTP_MAX_HEADER_BYTES", 1<<20),

		Store: strings.ToLower(EnvString("UNET_STORE", StoreMemory)),

		DatabaseURL: EnvString("UNET_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("UNET_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("UNET_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("UNET_DB_SCHEMA", "unet"),

		SQLitePath: EnvString("UNET_SQLITE_PATH", "./unet.db"),

		Migrate: EnvBool("UNET_MIGRATE", true),

		RequireTokenHMAC: EnvBool("UNET_REQUIRE_TOKEN_HMAC", false),
	}
}

// Validate rejects store selections that cannot start.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("config: UNET_STORE=sqlite requires UNET_SQLITE_PATH")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("config: UNET_STORE=postgres requires UNET_DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown UNET_STORE %q (want memory, sqlite or postgres)", c.Store)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("config: unknown UNET_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
