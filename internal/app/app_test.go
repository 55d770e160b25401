// ABOUTME: Tests for application wiring, tool activation and the HTTP surface.
// ABOUTME: Uses a temp data dir with a real SQLite store and master key.

package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduitools/adui/internal/config"
	"github.com/aduitools/adui/internal/settings"
	"github.com/aduitools/adui/internal/toolkit"
	"github.com/aduitools/adui/internal/tools/jsontool"
	"github.com/aduitools/adui/internal/transport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Database.Path = filepath.Join(dir, "adui.db")
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func states(a *App) map[string]toolkit.State {
	out := make(map[string]toolkit.State)
	for _, st := range a.Host().States() {
		out[st.Meta.ID] = st.State
	}
	return out
}

func TestNewCreatesMasterKey(t *testing.T) {
	cfg := testConfig(t)
	newTestApp(t, cfg)

	info, err := os.Stat(filepath.Join(cfg.DataDir, settings.MasterKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestNewWithoutEncryptedKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settings.EncryptedKeys = []string{}
	a := newTestApp(t, cfg)

	require.NoError(t, a.Settings().Set(context.Background(), "api_keys", json.RawMessage(`{"x":1}`)))
	_, err := os.Stat(filepath.Join(cfg.DataDir, settings.MasterKeyFile))
	assert.True(t, os.IsNotExist(err))
}

func TestNewRejectsBadProxy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network.Proxy = config.ProxyConfig{Mode: "manual", URL: "ftp://proxy"}

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, transport.ErrInvalidProxy)
}

func TestStartActivatesTools(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	require.NoError(t, a.Start(context.Background()))

	assert.Equal(t, map[string]toolkit.State{
		"json":      toolkit.StateActive,
		"translate": toolkit.StateDisabled,
		"markdown":  toolkit.StateActive,
		"github":    toolkit.StateActive,
	}, states(a))
}

func TestStartWithTranslationKeys(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t))
	keys := `{"translation":{"baidu":{"apiKey":"k","appSecret":"s"}}}`
	require.NoError(t, a.Settings().Set(ctx, "api_keys", json.RawMessage(keys)))

	require.NoError(t, a.Start(ctx))
	assert.Equal(t, toolkit.StateActive, states(a)["translate"])
}

func TestStartHonorsDisabledTools(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Disabled = []string{"markdown"}
	cfg.Tools.ConcurrentActivation = 2
	a := newTestApp(t, cfg)

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, 3, a.Registry().Len())
	_, ok := states(a)["markdown"]
	assert.False(t, ok)
}

func TestStartRefusesInvalidRegistry(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	a.Registry().Register(jsontool.New())

	err := a.Start(context.Background())
	assert.ErrorIs(t, err, toolkit.ErrDuplicateID)
	assert.ErrorIs(t, err, toolkit.ErrRouteCollision)
	assert.Empty(t, a.Host().Active())
}

func TestHandler(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	require.NoError(t, a.Start(context.Background()))
	h, err := a.Handler()
	require.NoError(t, err)

	do := func(method, target, body string) *http.Response {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
		return rec.Result()
	}

	resp := do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/tools/", resp.Header.Get("Location"))

	resp = do(http.MethodGet, "/tools/", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/tools/json", resp.Header.Get("Location"))

	resp = do(http.MethodPost, "/tools/json", `{"text":"{ \"a\" : 1 }","minify":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, `{"a":1}`, out.Result)

	// translate is disabled, so its path falls through to the index redirect
	for _, p := range []string{"/tools/translate", "/unknown/page"} {
		resp = do(http.MethodGet, p, "")
		assert.Equal(t, http.StatusFound, resp.StatusCode, p)
		assert.Equal(t, "/tools/", resp.Header.Get("Location"), p)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
