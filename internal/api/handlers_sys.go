package api

import (
	"net/http"
)

// HealthHandler handles GET /v1/sys/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	paused, reason, since := s.avail.Status()
	code := http.StatusOK
	if paused {
		code = http.StatusServiceUnavailable
	}
	body := map[string]any{
		"available": !paused,
		"height":    s.ledger.Height(),
		"pending":   s.ledger.Pending(),
		"since":     since,
		"version":   Version,
	}
	if reason != "" {
		body["reason"] = reason
	}
	if n, err := s.ledger.EntryCount(r.Context()); err == nil {
		body["entries"] = n
	} else {
		s.logger.Warn().Err(err).Msg("counting ledger entries")
	}
	writeJSON(w, code, body)
}

// PauseHandler handles PUT /v1/sys/pause
func (s *Server) PauseHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	decodeJSON(w, r, &req) //nolint:errcheck
	if req.Reason == "" {
		req.Reason = "paused by operator"
	}
	s.avail.Pause(req.Reason)
	s.logger.Warn().Str("reason", req.Reason).Msg("ledger paused")
	writeJSON(w, http.StatusOK, map[string]any{"available": false, "reason": req.Reason})
}

// ResumeHandler handles PUT /v1/sys/resume
func (s *Server) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	s.avail.Resume()
	s.logger.Info().Msg("ledger resumed")
	writeJSON(w, http.StatusOK, map[string]any{"available": true})
}
