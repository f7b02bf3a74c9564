// Package app wires the unet server runtime: config, logging, persistence,
// metrics and the HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"unet/cmd/internal/auth/account"
	authapi "unet/cmd/internal/auth/api"
	"unet/cmd/security/password"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the unet server runtime.
type App struct {
	cfg Config
	log Logger

	backend  *Backend
	auth     *authapi.Handler
	registry *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	hasher, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	acctCfg, err := account.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := newApp(cfg, log, backend, acctCfg, hasher, authapi.LoadConfigFromEnv())
	if err != nil {
		_ = backend.Close(ctx)
		return nil, err
	}
	return a, nil
}

func newApp(cfg Config, log Logger, backend *Backend, acctCfg account.Config, hasher account.PasswordHasher, apiCfg authapi.Config) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := authapi.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	svc, err := account.NewService(acctCfg, backend.Store, hasher, account.WithLogger(log))
	if err != nil {
		return nil, err
	}
	auth, err := authapi.NewHandler(log, apiCfg, svc, authapi.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		backend:  backend,
		auth:     auth,
		registry: reg,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.backend, a.auth, a.registry)

	var h http.Handler = mux
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log)
	return WithRequestID(h)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.backend.Name)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.backend.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.backend.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
