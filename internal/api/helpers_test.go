package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"framehub/internal/domain"
	"framehub/internal/installer"
	"framehub/internal/ledger"
	"framehub/internal/observability"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	workDir string
	server  *Server
	handler http.Handler
	ledger  *ledger.MemoryLedger
	metrics *observability.Metrics
}

// newFixture builds a server rooted at a temp workdir. A nil payload leaves
// the installer missing.
func newFixture(t *testing.T, payload []byte) *fixture {
	t.Helper()
	workDir := t.TempDir()
	if payload != nil {
		writeInstaller(t, workDir, payload)
	}

	src, err := installer.NewSource(workDir, "")
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	mem := ledger.NewMemoryLedger()
	metrics := observability.NewMetrics(observability.MetricsConfig{Namespace: "framehub_test", Version: "test"})
	mux := http.NewServeMux()
	srv := NewServer(mux, src, mem, observability.Discard(), metrics)
	srv.RegisterRoutes()

	return &fixture{
		workDir: workDir,
		server:  srv,
		handler: ApplyMiddlewares(mux, RequestIDMiddleware(), LoggingMiddleware(newTestLogger())),
		ledger:  mem,
		metrics: metrics,
	}
}

func writeInstaller(t *testing.T, workDir string, payload []byte) string {
	t.Helper()
	dir := filepath.Join(workDir, domain.DefaultPublicDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, domain.InstallerFileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write installer: %v", err)
	}
	return path
}

var errLedgerDown = errors.New("ledger unavailable")

// brokenLedger fails every call.
type brokenLedger struct{}

func (brokenLedger) Record(context.Context, *ledger.Event) error { return errLedgerDown }
func (brokenLedger) List(context.Context, ledger.ListOptions) ([]*ledger.Event, int, error) {
	return nil, 0, errLedgerDown
}
func (brokenLedger) Stats(context.Context) (ledger.Stats, error) { return ledger.Stats{}, errLedgerDown }
func (brokenLedger) Close() error                                { return nil }
