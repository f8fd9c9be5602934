package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/vidfeed/internal/api"
	"github.com/stwalsh4118/vidfeed/internal/config"
	"github.com/stwalsh4118/vidfeed/internal/db"
	"github.com/stwalsh4118/vidfeed/internal/session"
)

// fakeStore serves the catalog routes the server depends on
func fakeStore(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/api/videos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"videos":     []map[string]interface{}{{"id": 1, "title": "first"}},
			"nextCursor": nil,
			"hasMore":    false,
		})
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{{"id": "music", "name": "Music"}})
	})
	mux.HandleFunc("/api/banners", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{{"id": 1, "title": "promo", "is_active": true}})
	})
	mux.HandleFunc("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{})
	})
	mux.HandleFunc("/iframe_api", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("// sdk"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(storeURL string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Logging: config.LoggingConfig{Level: "info"},
		Catalog: config.CatalogConfig{BaseURL: storeURL + "/api", Timeout: time.Second, PageSize: 10},
		Feed: config.FeedConfig{
			SearchDebounce:         10 * time.Millisecond,
			URLSyncDebounce:        10 * time.Millisecond,
			ScrollThreshold:        500,
			SessionIdleTimeout:     time.Minute,
			SessionCleanupInterval: time.Minute,
			Locales:                []string{"en", "ar"},
		},
		Notifications: config.NotificationsConfig{PollInterval: time.Minute, RecentLimit: 5},
		Banners:       config.BannersConfig{RotateInterval: time.Minute},
		Playback: config.PlaybackConfig{
			SDKURL:         storeURL + "/iframe_api",
			LoadTimeout:    time.Second,
			CommandTimeout: time.Second,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "server.db"), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	s, err := New(testConfig(fakeStore(t).URL), database)
	require.NoError(t, err)
	s.setupRouter()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestNew_InvalidCatalogURL(t *testing.T) {
	cfg := testConfig("")
	cfg.Catalog.BaseURL = "not a url"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewBufferString(`{"locale":"ar"}`)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "ar", v.Locale)
	assert.Len(t, v.Categories, 1)

	// Session mount refreshed the shared banner carousel.
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/banners", nil))
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestServer_PreloadSDK(t *testing.T) {
	s := newTestServer(t)
	s.preloadSDK()
	require.Eventually(t, s.playback.Gate().IsReady, time.Second, time.Millisecond)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/players/sdk", nil))
	var status api.SDKStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.State)
}
