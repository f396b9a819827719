package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"framehub/internal/domain"
	"framehub/internal/installer"
	"framehub/internal/ledger"
	"framehub/internal/observability"
)

const wantFailureBody = `{"error":"Internal Server Error"}`

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestDownloadServesInstaller(t *testing.T) {
	payload := []byte("MSI\x00\x01\x02 installer payload")
	f := newFixture(t, payload)

	for _, path := range []string{domain.DownloadPath, domain.DownloadAliasPath} {
		t.Run(path, func(t *testing.T) {
			rr := get(t, f.handler, path)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if !bytes.Equal(rr.Body.Bytes(), payload) {
				t.Fatalf("body mismatch: got %q", rr.Body.Bytes())
			}
			if got := rr.Header().Get("Content-Disposition"); got != "attachment; filename=framehub_0.1.0_x64_en-US.msi" {
				t.Errorf("Content-Disposition = %q", got)
			}
			if got := rr.Header().Get("Content-Type"); got != "application/x-msi" {
				t.Errorf("Content-Type = %q", got)
			}
			if got := rr.Header().Get("Content-Length"); got != strconv.Itoa(len(payload)) {
				t.Errorf("Content-Length = %q", got)
			}
		})
	}
}

func TestDownloadMissingInstaller(t *testing.T) {
	f := newFixture(t, nil)

	rr := get(t, f.handler, domain.DownloadPath)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != wantFailureBody {
		t.Fatalf("body = %q, want %q", got, wantFailureBody)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if rr.Header().Get("Content-Disposition") != "" {
		t.Error("failure response must not carry Content-Disposition")
	}
}

func TestDownloadInstallerDeletedBeforeRequest(t *testing.T) {
	f := newFixture(t, []byte("present at startup"))

	if rr := get(t, f.handler, domain.DownloadPath); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 before delete, got %d", rr.Code)
	}

	if err := os.Remove(filepath.Join(f.workDir, domain.DefaultPublicDir, domain.InstallerFileName)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	rr := get(t, f.handler, domain.DownloadPath)
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != wantFailureBody {
		t.Fatalf("expected fixed 500 after delete, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestDownloadUnreadableInstaller(t *testing.T) {
	workDir := t.TempDir()
	// A directory where the file should be makes the read fail.
	if err := os.MkdirAll(filepath.Join(workDir, domain.DefaultPublicDir, domain.InstallerFileName), 0o755); err != nil {
		t.Fatal(err)
	}
	src, err := installer.NewSource(workDir, "")
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewServer(mux, src, nil, nil, nil).RegisterRoutes()

	rr := get(t, mux, domain.DownloadPath)
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != wantFailureBody {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestDownloadIsIdempotent(t *testing.T) {
	f := newFixture(t, []byte("same bytes every time"))

	first := get(t, f.handler, domain.DownloadPath)
	second := get(t, f.handler, domain.DownloadPath)

	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatal("bodies differ between requests")
	}
	for _, h := range []string{"Content-Type", "Content-Disposition", "Content-Length"} {
		if first.Header().Get(h) != second.Header().Get(h) {
			t.Errorf("%s differs: %q vs %q", h, first.Header().Get(h), second.Header().Get(h))
		}
	}
}

func TestDownloadLargeInstaller(t *testing.T) {
	payload := make([]byte, 10*1024*1024)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, payload)

	rr := get(t, f.handler, domain.DownloadPath)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.Len() != 10485760 {
		t.Fatalf("body length = %d, want 10485760", rr.Body.Len())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "framehub_0.1.0_x64_en-US.msi") {
		t.Errorf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.Equal(rr.Body.Bytes(), payload) {
		t.Error("large body mismatch")
	}
}

func TestDownloadHead(t *testing.T) {
	f := newFixture(t, []byte("head me"))
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	resp, err := http.Head(srv.URL + domain.DownloadPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK || resp.ContentLength != 7 {
		t.Fatalf("HEAD status=%d length=%d", resp.StatusCode, resp.ContentLength)
	}

	stats, err := f.ledger.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.BytesServed != 0 {
		t.Errorf("HEAD must not count as a download, stats = %+v", stats)
	}
	scrape := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), "framehub_test_installer_bytes_served_total 0") {
		t.Error("HEAD must not add to bytes served")
	}
}

func TestDownloadRecordsLedgerAndMetrics(t *testing.T) {
	f := newFixture(t, []byte("12345"))

	req := httptest.NewRequest(http.MethodGet, domain.DownloadPath, nil)
	req.Header.Set("User-Agent", "framehub-test/1.0")
	req.Header.Set(requestIDHeader, "req-ledger-1")
	req.RemoteAddr = "192.0.2.10:5555"
	f.handler.ServeHTTP(httptest.NewRecorder(), req)

	_ = os.Remove(filepath.Join(f.workDir, domain.DefaultPublicDir, domain.InstallerFileName))
	get(t, f.handler, domain.DownloadAliasPath)

	events, total, err := f.ledger.List(context.Background(), ledger.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("expected 2 ledger events, got %d", total)
	}
	failed, ok := events[0], events[1]
	if failed.StatusCode != http.StatusInternalServerError || failed.Bytes != 0 {
		t.Errorf("failed event = %+v", failed)
	}
	if ok.StatusCode != http.StatusOK || ok.Bytes != 5 {
		t.Errorf("success event = %+v", ok)
	}
	if ok.RequestID != "req-ledger-1" || ok.IPAddress != "192.0.2.10" || ok.UserAgent != "framehub-test/1.0" {
		t.Errorf("success event metadata = %+v", ok)
	}

	scrape := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{
		`framehub_test_installer_downloads_total{result="success"} 1`,
		`framehub_test_installer_downloads_total{result="failure"} 1`,
		`framehub_test_installer_bytes_served_total 5`,
	} {
		if !strings.Contains(scrape.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestDownloadLedgerFailureIsNotSurfaced(t *testing.T) {
	workDir := t.TempDir()
	writeInstaller(t, workDir, []byte("ok"))
	src, err := installer.NewSource(workDir, "")
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewServer(mux, src, brokenLedger{}, observability.Discard(), nil).RegisterRoutes()

	rr := get(t, mux, domain.DownloadPath)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestDownloadStats(t *testing.T) {
	f := newFixture(t, []byte("abc"))
	get(t, f.handler, domain.DownloadPath)
	get(t, f.handler, domain.DownloadPath)

	rr := get(t, f.handler, "/api/v1/downloads/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats ledger.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Succeeded != 2 || stats.BytesServed != 6 || stats.LastDownload == nil {
		t.Errorf("stats = %+v", stats)
	}
	if strings.Contains(rr.Body.String(), "ip_address") {
		t.Error("stats must not expose client addresses")
	}
}

func TestDownloadStatsLedgerError(t *testing.T) {
	mux := http.NewServeMux()
	NewServer(mux, nil, brokenLedger{}, nil, nil).RegisterRoutes()

	rr := get(t, mux, "/api/v1/downloads/stats")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "failed to load download stats" || body.Detail == "" {
		t.Errorf("body = %+v", body)
	}
}

type downloadList struct {
	Events []map[string]any `json:"events"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func TestDownloadList(t *testing.T) {
	f := newFixture(t, []byte("abc"))
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, domain.DownloadPath, nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("User-Agent", "agent-"+strconv.Itoa(i))
		f.handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rr := get(t, f.handler, "/api/v1/downloads?limit=2&offset=0")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "ip_address") || strings.Contains(rr.Body.String(), "198.51.100.7") {
		t.Error("download list must not expose client addresses")
	}

	var page downloadList
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Limit != 2 || page.Offset != 0 || len(page.Events) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Events[0]["user_agent"] != "agent-2" || page.Events[1]["user_agent"] != "agent-1" {
		t.Errorf("expected newest first, got %v", page.Events)
	}
	if page.Events[0]["status_code"] != float64(http.StatusOK) || page.Events[0]["bytes"] != float64(3) {
		t.Errorf("event = %v", page.Events[0])
	}

	rr = get(t, f.handler, "/api/v1/downloads?offset=2")
	page = downloadList{}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 1 || page.Events[0]["user_agent"] != "agent-0" || page.Limit != 50 {
		t.Errorf("second page = %+v", page)
	}
}

func TestDownloadListTimeWindow(t *testing.T) {
	f := newFixture(t, []byte("abc"))
	get(t, f.handler, domain.DownloadPath)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name  string
		query string
		total int
	}{
		{"since past", "since=" + past, 1},
		{"since future", "since=" + future, 0},
		{"until past", "until=" + past, 0},
		{"window", "since=" + past + "&until=" + future, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, f.handler, "/api/v1/downloads?"+tt.query)
			var page downloadList
			if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
				t.Fatal(err)
			}
			if rr.Code != http.StatusOK || page.Total != tt.total {
				t.Errorf("got %d total=%d, want total=%d", rr.Code, page.Total, tt.total)
			}
		})
	}
}

func TestDownloadListErrors(t *testing.T) {
	f := newFixture(t, nil)
	rr := get(t, f.handler, "/api/v1/downloads?since=yesterday")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "invalid since" {
		t.Errorf("body = %+v", body)
	}

	mux := http.NewServeMux()
	NewServer(mux, nil, brokenLedger{}, nil, nil).RegisterRoutes()
	if rr := get(t, mux, "/api/v1/downloads"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
