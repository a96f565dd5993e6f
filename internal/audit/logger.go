package audit

import (
	"context"

	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
)

// Journal records ledger transaction events and answers journal queries.
type Journal struct {
	store  storage.Backend
	logger zerolog.Logger
}

// NewJournal creates a Journal. Committed receipts are read back from store.
func NewJournal(store storage.Backend, logger zerolog.Logger) *Journal {
	return &Journal{store: store, logger: logger.With().Str("component", "journal").Logger()}
}

// Submitted records a transaction accepted into the mempool.
// Values must NEVER be logged here, only metadata.
func (j *Journal) Submitted(r *models.Receipt) {
	j.logger.Info().
		Str("tx", r.TxHash).
		Str("key", r.Key).
		Str("from", r.From).
		Int("size", r.ValueSize).
		Msg("transaction submitted")
}

// Refused records a transaction the ledger would not accept.
func (j *Journal) Refused(tx *models.Transaction, reason error) {
	j.logger.Warn().
		Str("key", tx.Key).
		Str("from", tx.From).
		Err(reason).
		Msg("transaction refused")
}

// Failed records a transaction dropped from the mempool without committing.
func (j *Journal) Failed(r *models.Receipt, reason error) {
	j.logger.Warn().
		Str("tx", r.TxHash).
		Str("key", r.Key).
		Str("from", r.From).
		Err(reason).
		Msg("transaction failed")
}

// Committed records a block that was written to storage.
func (j *Journal) Committed(b *models.Block) {
	for _, p := range b.Txs {
		j.logger.Debug().
			Str("tx", p.Receipt.TxHash).
			Uint64("block", b.Number).
			Str("key", p.Receipt.Key).
			Msg("transaction confirmed")
	}
	j.logger.Info().Uint64("block", b.Number).Int("txs", len(b.Txs)).Msg("block committed")
}

// Query retrieves paginated confirmed transactions.
func (j *Journal) Query(ctx context.Context, filter storage.TxFilter) ([]*models.Receipt, error) {
	return j.store.QueryTransactions(ctx, filter)
}
