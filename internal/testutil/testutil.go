// Package testutil provides helpers for end-to-end tests against a fully
// wired FrameHub server.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"framehub/internal/api"
	"framehub/internal/domain"
	"framehub/internal/installer"
	"framehub/internal/ledger"
	"framehub/internal/observability"
)

// TestServerConfig holds configuration for creating a test server.
type TestServerConfig struct {
	// Installer is written to the public dir before start. nil leaves it missing.
	Installer []byte
	// PublicDir overrides the default "public" directory.
	PublicDir string
	// EnableRateLimit enables rate limiting middleware.
	EnableRateLimit bool
	// RateLimitConfig configures rate limiting if enabled.
	RateLimitConfig api.RateLimitConfig
	// EnableMetrics enables metrics collection and the /metrics route.
	EnableMetrics bool
}

// TestServerComponents holds all the components created for a test server.
type TestServerComponents struct {
	Server  *httptest.Server
	WorkDir string
	// InstallerPath is where the server looks for the installer.
	InstallerPath string
	Ledger        *ledger.MemoryLedger
	Metrics       *observability.Metrics
	Logger        observability.Logger
	// Cleanup tears down the test server.
	Cleanup func()
}

// NewTestServer builds the same handler chain as cmd/framehub, rooted at a
// temporary working directory.
func NewTestServer(t *testing.T, cfg TestServerConfig) *TestServerComponents {
	t.Helper()

	workDir := t.TempDir()
	publicDir := cfg.PublicDir
	if publicDir == "" {
		publicDir = domain.DefaultPublicDir
	}

	src, err := installer.NewSource(workDir, publicDir)
	if err != nil {
		t.Fatalf("failed to resolve installer: %v", err)
	}

	logger := observability.NewLogger(observability.Config{
		Level:  "debug",
		Format: "json",
		Output: io.Discard,
	})

	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics(observability.MetricsConfig{
			Namespace: "framehub_test",
			Version:   "test",
		})
	}

	mem := ledger.NewMemoryLedger(ledger.WithMaxEvents(1000))

	mux := http.NewServeMux()
	srv := api.NewServer(mux, src, mem, logger, metrics)
	srv.RegisterRoutes()

	rl := api.RateLimitConfig{}
	if cfg.EnableRateLimit {
		rl = cfg.RateLimitConfig
	}

	handler := api.ApplyMiddlewares(mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		observability.RateLimitMetricsMiddleware(metrics, rl.Enabled()),
		api.RateLimitMiddleware(rl, nil, logger.Slog()),
	)

	components := &TestServerComponents{
		WorkDir:       workDir,
		InstallerPath: src.Path(),
		Ledger:        mem,
		Metrics:       metrics,
		Logger:        logger,
	}
	if cfg.Installer != nil {
		components.WriteInstaller(t, cfg.Installer)
	}

	components.Server = httptest.NewServer(handler)
	components.Cleanup = func() {
		components.Server.Close()
		_ = mem.Close()
	}
	return components
}

// WriteInstaller replaces the installer on disk.
func (c *TestServerComponents) WriteInstaller(t *testing.T, payload []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(c.InstallerPath), 0o755); err != nil {
		t.Fatalf("failed to create public dir: %v", err)
	}
	if err := os.WriteFile(c.InstallerPath, payload, 0o644); err != nil {
		t.Fatalf("failed to write installer: %v", err)
	}
}

// RemoveInstaller deletes the installer from disk.
func (c *TestServerComponents) RemoveInstaller(t *testing.T) {
	t.Helper()
	if err := os.Remove(c.InstallerPath); err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to remove installer: %v", err)
	}
}

// HTTPClient returns the test server's client configured for the server.
func (c *TestServerComponents) HTTPClient() *http.Client {
	return c.Server.Client()
}

// URL returns the full URL for a given path.
func (c *TestServerComponents) URL(path string) string {
	return c.Server.URL + path
}

// Get performs a GET request and fails the test on transport errors.
func (c *TestServerComponents) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := c.HTTPClient().Get(c.URL(path))
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// ReadBody reads and closes the response body.
func ReadBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return data
}

// ReadJSONResponse reads and unmarshals a JSON response body.
func ReadJSONResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	data := ReadBody(t, resp)
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nBody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, got, expected int) {
	t.Helper()
	if got != expected {
		t.Errorf("expected status %d, got %d", expected, got)
	}
}

// AssertHeader checks that the response has the expected header value.
func AssertHeader(t *testing.T, resp *http.Response, key, expected string) {
	t.Helper()
	if got := resp.Header.Get(key); got != expected {
		t.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
}

// AssertBody checks the body byte for byte.
func AssertBody(t *testing.T, got, expected []byte) {
	t.Helper()
	if !bytes.Equal(got, expected) {
		if len(got) > 128 || len(expected) > 128 {
			t.Errorf("body mismatch: got %d bytes, expected %d", len(got), len(expected))
			return
		}
		t.Errorf("body mismatch:\nexpected: %q\ngot:      %q", expected, got)
	}
}
