package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"framehub/internal/domain"
	"framehub/internal/installer"
	"framehub/internal/ledger"
	"framehub/internal/observability"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes v without a trailing newline so fixed bodies stay byte exact.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// Server holds the handlers for the landing page, the installer download
// and the operational endpoints.
type Server struct {
	mux       *http.ServeMux
	installer installer.Reader
	ledger    ledger.Ledger
	logger    observability.Logger
	metrics   *observability.Metrics
	proxies   *TrustedProxyConfig
	page      *pageRenderer
}

// NewServer creates a Server. A nil logger discards output, a nil ledger
// falls back to memory and a nil metrics disables collection.
func NewServer(mux *http.ServeMux, src installer.Reader, l ledger.Ledger, logger observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.Discard()
	}
	if l == nil {
		l = ledger.NewMemoryLedger()
	}
	return &Server{
		mux:       mux,
		installer: src,
		ledger:    l,
		logger:    logger,
		metrics:   metrics,
		page:      newPageRenderer(),
	}
}

// SetTrustedProxies configures which peers may supply X-Forwarded-For for
// ledger client addresses.
func (s *Server) SetTrustedProxies(p *TrustedProxyConfig) { s.proxies = p }

// RegisterRoutes registers every route on the server's mux.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleLanding)
	s.mux.Handle("GET /static/", s.staticHandler())

	s.mux.HandleFunc("GET "+domain.DownloadPath, s.handleDownload)
	s.mux.HandleFunc("GET "+domain.DownloadAliasPath, s.handleDownload)
	s.mux.HandleFunc("GET /api/v1/downloads", s.handleDownloadList)
	s.mux.HandleFunc("GET /api/v1/downloads/stats", s.handleDownloadStats)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPISpec)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeErr(r.Context(), w, http.StatusNotFound, "not found", r.URL.Path)
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		hubFromContext(ctx).CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// hubFromContext returns the request's Sentry hub, falling back to the
// global one outside LoggingMiddleware.
func hubFromContext(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}
