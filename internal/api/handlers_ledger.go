package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/org/creditledger/internal/core"
	"github.com/org/creditledger/internal/ledger"
	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
)

// AvailableHandler handles GET /v1/ledger/available
func (s *Server) AvailableHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"available": s.ledger.IsAvailable(),
		"height":    s.ledger.Height(),
	})
}

// GetDataHandler handles GET /v1/ledger/data/{key}
func (s *Server) GetDataHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	entry, err := s.ledger.Get(r.Context(), key)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":   entry.Key,
		"value": entry.Value,
		"block": entry.Block,
	})
}

// SubmitTxHandler handles POST /v1/ledger/tx
func (s *Server) SubmitTxHandler(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction body")
		return
	}
	setSigner(r.Context(), tx.From)
	receipt, err := s.ledger.Submit(r.Context(), &tx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	code := http.StatusAccepted
	if receipt.Confirmed() {
		code = http.StatusOK
	}
	writeJSON(w, code, receipt)
}

// ReceiptHandler handles GET /v1/ledger/tx/{hash}
func (s *Server) ReceiptHandler(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.ledger.Receipt(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrPaused):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrDuplicateTx):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrTxFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
