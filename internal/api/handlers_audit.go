package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
)

// JournalHandler handles GET /v1/ledger/journal
func (s *Server) JournalHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TxFilter{
		KeyPrefix: q.Get("key"),
		Signer:    q.Get("signer"),
		Limit:     100,
	}

	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &t
	}

	entries, err := s.journal.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*models.Receipt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}
