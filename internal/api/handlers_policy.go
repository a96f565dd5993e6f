package api

import (
	"net/http"
	"sort"
)

// CapabilitiesHandler handles GET /v1/ledger/capabilities?signer=&key=
func (s *Server) CapabilitiesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	caps := s.policy.GetEffectiveCapabilities(r.Context(), q.Get("signer"), key)
	sort.Strings(caps)
	writeJSON(w, http.StatusOK, map[string]any{
		"signer":       q.Get("signer"),
		"key":          key,
		"capabilities": caps,
	})
}
