package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"inventory-backend/internal/inventory"
	"inventory-backend/internal/platform/config"
	"inventory-backend/internal/platform/db"
)

func newTestConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	static := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(static, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>inventory</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	return &config.Config{
		Mode:      mode,
		Server:    config.ServerConfig{Port: "0", CORSOrigins: []string{"http://localhost:5173"}},
		DB:        db.DatabaseConfig{Driver: db.DriverSQLite, Path: filepath.Join(dir, "inventory.db")},
		StaticDir: static,
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, logger *zap.Logger) http.Handler {
	t.Helper()
	store, err := inventory.OpenStore(context.Background(), cfg.DB, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(cfg, inventory.NewService(store, logger), logger)
}

func get(h http.Handler, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Healthz(t *testing.T) {
	h := newTestEngine(t, newTestConfig(t, config.ModeRelease), nil)

	w := get(h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRouter_RequestIDAndLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newTestEngine(t, newTestConfig(t, config.ModeRelease), zap.New(core))

	w := get(h, "/api/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 26)

	w = get(h, "/api/inventory", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, id, entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/api/inventory", entries[1].ContextMap()["path"])
}

func TestRouter_StaticFallback(t *testing.T) {
	h := newTestEngine(t, newTestConfig(t, config.ModeRelease), nil)

	w := get(h, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inventory")

	w = get(h, "/assets/app.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age")

	// クライアント側ルーティング
	w = get(h, "/items/3/edit", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inventory")

	w = get(h, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestRouter_CORSOnlyInDev(t *testing.T) {
	origin := map[string]string{"Origin": "http://localhost:5173"}

	dev := newTestEngine(t, newTestConfig(t, config.ModeDev), nil)
	w := get(dev, "/api/inventory", origin)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	rel := newTestEngine(t, newTestConfig(t, config.ModeRelease), nil)
	w = get(rel, "/api/inventory", origin)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
