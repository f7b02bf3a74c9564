package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/unet.
// It returns an error instead of calling os.Exit so defers still run.
func Run() error {
	envFile, err := LoadDotEnv(EnvString("UNET_ENV_FILE", ".env"))
	if err != nil {
		return err
	}

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	if envFile != "" {
		log.Info("config.dotenv.loaded", "path", envFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
