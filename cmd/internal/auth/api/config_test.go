package authapi

import "testing"

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("UNET_TRUST_PROXY", "")
	t.Setenv("UNET_MAX_BODY_BYTES", "")

	cfg := LoadConfigFromEnv()
	if cfg.TrustProxy {
		t.Fatalf("proxy headers must not be trusted by default")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes = %d, want 1 MiB", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("UNET_TRUST_PROXY", "true")
	t.Setenv("UNET_MAX_BODY_BYTES", "4096")

	cfg := LoadConfigFromEnv()
	if !cfg.TrustProxy || cfg.MaxBodyBytes != 4096 {
		t.Fatalf("override failed: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("UNET_TRUST_PROXY", "sometimes")
	t.Setenv("UNET_MAX_BODY_BYTES", "-5")

	cfg := LoadConfigFromEnv()
	if cfg.TrustProxy || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if (Config{}).maxBodyBytes() != 1<<20 {
		t.Fatalf("zero config must use default body cap")
	}
}
