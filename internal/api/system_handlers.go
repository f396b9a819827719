package api

import (
	"net/http"

	apidocs "framehub/docs"
)

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(apidocs.OpenAPISpec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadinessResponse represents the JSON response for the readiness check endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady checks if the application is ready to accept traffic.
// Unlike /healthz (liveness), this endpoint verifies that the installer is
// present and the ledger answers. Returns 503 when any check fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ReadinessResponse{Status: "ok", Checks: make(map[string]string, 2)}

	fail := func(check string, err error) {
		resp.Checks[check] = "error"
		resp.Status = "unhealthy"
		s.logger.ErrorContext(ctx, "readiness check failed", "check", check, "error", err.Error())
	}

	if _, err := s.installer.Stat(ctx); err != nil {
		fail("installer", err)
	} else {
		resp.Checks["installer"] = "ok"
	}

	if _, err := s.ledger.Stats(ctx); err != nil {
		fail("ledger", err)
	} else {
		resp.Checks["ledger"] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
