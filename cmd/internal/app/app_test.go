package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unet/cmd/internal/auth/account"
	authapi "unet/cmd/internal/auth/api"
	"unet/cmd/security/password"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cheapHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()

	ctx := context.Background()
	backend, err := OpenBackend(ctx, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close(ctx) })

	a, err := newApp(cfg, discardLogger(), backend, account.DefaultConfig(), cheapHasher(), authapi.Config{})
	require.NoError(t, err)
	return a
}

func post(t *testing.T, srv *httptest.Server, path string, body map[string]string) map[string]any {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestApp_EndToEnd(t *testing.T) {
	backends := []struct {
		name string
		cfg  Config
	}{
		{name: "memory", cfg: Config{Store: StoreMemory}},
		{name: "sqlite", cfg: Config{Store: StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "unet.db"), Migrate: true}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			a := newTestApp(t, b.cfg)
			srv := httptest.NewServer(a.Handler())
			t.Cleanup(srv.Close)

			created := post(t, srv, "/unet/user/create", map[string]string{"username": "alice_99", "password": "Str0ng!Pw"})
			assert.Equal(t, false, created["exists"])
			assert.Equal(t, "alice_99", created["username"])

			got := post(t, srv, "/unet/user/get", map[string]string{"username": "alice_99", "password": "Str0ng!Pw"})
			require.Equal(t, true, got["exists"])
			tok, _ := got["token"].(string)
			assert.GreaterOrEqual(t, len(tok), 64)

			updated := post(t, srv, "/unet/user/update", map[string]string{"token": tok, "password": "N3w!Passw"})
			assert.Equal(t, false, updated["exists"])

			destroyed := post(t, srv, "/unet/user/destroy", map[string]string{"token": tok})
			assert.Equal(t, false, destroyed["exists"])

			again := post(t, srv, "/unet/user/destroy", map[string]string{"token": tok})
			assert.Equal(t, true, again["warning"])
			assert.Nil(t, again["exists"])
		})
	}
}

func TestApp_OperationalEndpoints(t *testing.T) {
	a := newTestApp(t, Config{Store: StoreMemory})
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), path)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"), path)
	}

	post(t, srv, "/unet/user/get", map[string]string{"username": "ghost", "password": "Str0ng!Pw"})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `unet_auth_requests_total{op="get",outcome="invalid_credentials"} 1`), "metrics body missing auth counter")
	assert.True(t, strings.Contains(string(body), "go_goroutines"), "metrics body missing runtime collector")
}

type downStore struct {
	Store
}

func (downStore) Ping(context.Context) error { return context.DeadlineExceeded }

func TestApp_ReadyzReportsStoreFailure(t *testing.T) {
	a := newTestApp(t, Config{Store: StoreMemory})
	a.backend = &Backend{Name: "broken", Store: downStore{Store: a.backend.Store}}

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestOpenBackend_UnknownStore(t *testing.T) {
	_, err := OpenBackend(context.Background(), Config{Store: "mongo"}, discardLogger())
	require.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Store: "mongo", LogFormat: "json"}, discardLogger())
	require.Error(t, err)

	t.Setenv("UNET_TOKEN_HMAC_KEY", "")
	_, err = New(context.Background(), Config{Store: StoreMemory, LogFormat: "json", RequireTokenHMAC: true}, discardLogger())
	require.Error(t, err)
}
