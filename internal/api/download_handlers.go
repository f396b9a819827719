package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"framehub/internal/domain"
	"framehub/internal/ledger"
)

// downloadFailure is the only body a failed download ever returns.
var downloadFailure = apiError{Error: "Internal Server Error"}

// handleDownload serves the installer in one piece. Any failure to read it
// turns into the same 500 body; the cause only reaches logs and Sentry.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := s.installer.Read(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "installer read failed", "error", err)
		hubFromContext(ctx).CaptureException(err)
		s.recordDownload(r, http.StatusInternalServerError, 0)
		writeJSON(w, http.StatusInternalServerError, downloadFailure)
		return
	}

	h := w.Header()
	h.Set("Content-Disposition", domain.ContentDisposition())
	h.Set("Content-Type", domain.InstallerContentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	// Recorded before the body goes out so the event is visible once the
	// client has the last byte.
	s.recordDownload(r, http.StatusOK, len(data))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WarnContext(ctx, "installer write interrupted", "error", err)
	}
}

// recordDownload counts the attempt and stores it in the ledger. Ledger
// failures are logged and never change the response.
func (s *Server) recordDownload(r *http.Request, status, bytes int) {
	// HEAD never sends the installer, so it is not an attempt.
	if r.Method == http.MethodHead {
		return
	}
	ctx := context.WithoutCancel(r.Context())

	s.metrics.RecordDownload(status == http.StatusOK, bytes)

	event := &ledger.Event{
		RequestID:  RequestIDFromContext(ctx),
		IPAddress:  clientKeyWithProxies(r, s.proxies),
		UserAgent:  r.UserAgent(),
		StatusCode: status,
		Bytes:      int64(bytes),
	}
	if err := s.ledger.Record(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "record download failed", "error", err)
	}
}

// GET /api/v1/downloads/stats
func (s *Server) handleDownloadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "failed to load download stats", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// downloadEventView is the public form of a ledger event. Client addresses
// stay in the ledger.
type downloadEventView struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	StatusCode int       `json:"status_code"`
	Bytes      int64     `json:"bytes"`
}

// GET /api/v1/downloads - List download attempts, newest first
// Query params: limit, offset, since, until (RFC 3339)
func (s *Server) handleDownloadList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	offset := 0
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	opts := ledger.ListOptions{Limit: limit, Offset: offset}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid "+p.name, err.Error())
			return
		}
		*p.dst = &t
	}

	events, total, err := s.ledger.List(r.Context(), opts)
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "failed to list downloads", err.Error())
		return
	}

	views := make([]downloadEventView, 0, len(events))
	for _, e := range events {
		views = append(views, downloadEventView{
			ID:         e.ID,
			Timestamp:  e.Timestamp,
			RequestID:  e.RequestID,
			UserAgent:  e.UserAgent,
			StatusCode: e.StatusCode,
			Bytes:      e.Bytes,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": views,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
