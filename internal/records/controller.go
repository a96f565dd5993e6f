package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
)

// NewRecord is the user input for Create.
type NewRecord struct {
	Category      models.Category
	Description   string
	SensitiveInfo string
}

// ControllerConfig tunes the Controller.
type ControllerConfig struct {
	// Timeout bounds each individual ledger call; zero means none.
	Timeout time.Duration
	// WaitConfirmed makes every write wait for its receipt before the next
	// step, when the ledger can report receipts.
	WaitConfirmed bool
	// ConfirmTimeout bounds each receipt wait; zero means none.
	ConfirmTimeout time.Duration
}

// Controller applies create/verify/reject as read-modify-write sequences
// against the ledger and re-lists through the Store afterwards.
//
// Nothing here is atomic: concurrent creates race on the key index and the
// last writer wins. Writes that succeeded before a later step failed are
// not rolled back.
type Controller struct {
	ledger chain.Ledger
	store  *Store
	logger zerolog.Logger
	cfg    ControllerConfig
	now    func() time.Time
	newID  func(time.Time) string
}

// NewController creates a Controller writing to ledger and listing through
// store.
func NewController(ledger chain.Ledger, store *Store, logger zerolog.Logger, cfg ControllerConfig) *Controller {
	return &Controller{
		ledger: ledger,
		store:  store,
		logger: logger.With().Str("component", "records").Logger(),
		cfg:    cfg,
		now:    time.Now,
		newID:  NewID,
	}
}

// Create writes a new pending record owned by signer, then appends its id
// to the key index. The returned snapshot is read after both writes and may
// not include the record yet if the ledger confirms writes asynchronously.
func (c *Controller) Create(ctx context.Context, signer chain.Signer, in NewRecord) (models.Record, Snapshot, error) {
	const op = "create"
	if !in.Category.Valid() {
		return models.Record{}, Snapshot{}, &OpError{Op: op, Err: fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)}
	}
	if strings.TrimSpace(in.SensitiveInfo) == "" {
		return models.Record{}, Snapshot{}, &OpError{Op: op, Err: fmt.Errorf("%w: sensitive info is required", ErrInvalidInput)}
	}
	if signer == nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, Err: ErrNoSigner}
	}
	if err := c.store.probe(ctx); err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, Err: err}
	}

	payload, err := EncodePayload(PayloadSource(in))
	if err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, Err: err}
	}
	now := c.now()
	rec := models.Record{
		ID:        c.newID(now),
		Payload:   payload,
		CreatedAt: now.Unix(),
		Owner:     signer.Address(),
		Category:  in.Category,
		Status:    models.StatusPending,
	}
	blob, err := encodeBlob(rec)
	if err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, ID: rec.ID, Err: err}
	}

	// Blob first: a failure before the index write leaves an unlisted
	// orphan rather than a dangling index entry.
	if err := c.write(ctx, signer, RecordKey(rec.ID), blob); err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, ID: rec.ID, Err: err}
	}

	ids, err := c.store.readIndex(ctx)
	if err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, ID: rec.ID, Err: err}
	}
	index, err := encodeIndex(append(ids, rec.ID))
	if err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, ID: rec.ID, Err: err}
	}
	if err := c.write(ctx, signer, IndexKey, index); err != nil {
		return models.Record{}, Snapshot{}, &OpError{Op: op, ID: rec.ID, Err: err}
	}
	c.logger.Info().Str("id", rec.ID).Str("category", string(rec.Category)).Msg("record created")

	snap, err := c.store.List(ctx)
	return rec, snap, err
}

// Verify marks record id as verified.
func (c *Controller) Verify(ctx context.Context, signer chain.Signer, id string) (Snapshot, error) {
	return c.transition(ctx, "verify", signer, id, models.StatusVerified)
}

// Reject marks record id as rejected.
func (c *Controller) Reject(ctx context.Context, signer chain.Signer, id string) (Snapshot, error) {
	return c.transition(ctx, "reject", signer, id, models.StatusRejected)
}

// transition moves a record to target. Repeating the transition a record
// already went through writes nothing and succeeds; crossing from one
// terminal status to the other is refused.
func (c *Controller) transition(ctx context.Context, op string, signer chain.Signer, id string, target models.Status) (Snapshot, error) {
	if signer == nil {
		return Snapshot{}, &OpError{Op: op, ID: id, Err: ErrNoSigner}
	}
	if strings.TrimSpace(id) == "" {
		return Snapshot{}, &OpError{Op: op, Err: fmt.Errorf("%w: record id is required", ErrInvalidInput)}
	}
	if err := c.store.probe(ctx); err != nil {
		return Snapshot{}, &OpError{Op: op, ID: id, Err: err}
	}

	raw, err := c.store.get(ctx, RecordKey(id))
	if err != nil {
		return Snapshot{}, &OpError{Op: op, ID: id, Err: err}
	}
	if len(raw) == 0 {
		return Snapshot{}, &OpError{Op: op, ID: id, Err: ErrNotFound}
	}
	rec, err := decodeBlob(id, raw)
	if err != nil {
		return Snapshot{}, &OpError{Op: op, ID: id, Err: err}
	}

	switch {
	case rec.Status == target:
		c.logger.Debug().Str("id", id).Str("status", string(target)).Msg("record already in target status")
	case rec.Status.Terminal():
		return Snapshot{}, &OpError{Op: op, ID: id,
			Err: fmt.Errorf("%w: %s to %s", ErrInvalidTransition, rec.Status, target)}
	default:
		blob, err := withStatus(raw, target)
		if err != nil {
			return Snapshot{}, &OpError{Op: op, ID: id, Err: err}
		}
		if err := c.write(ctx, signer, RecordKey(id), blob); err != nil {
			return Snapshot{}, &OpError{Op: op, ID: id, Err: err}
		}
		c.logger.Info().Str("id", id).Str("status", string(target)).Msg("record status updated")
	}

	return c.store.List(ctx)
}

func (c *Controller) write(ctx context.Context, signer chain.Signer, key string, value []byte) error {
	callCtx, cancel := c.callContext(ctx, c.cfg.Timeout)
	receipt, err := c.ledger.SetData(callCtx, signer, key, value)
	cancel()
	if err != nil {
		return classify(err)
	}
	c.logger.Debug().Str("key", key).Str("tx", receipt.TxHash).Str("tx_status", string(receipt.Status)).Msg("write submitted")

	if !c.cfg.WaitConfirmed || receipt.Confirmed() {
		return nil
	}
	waiter, ok := c.ledger.(chain.ReceiptWaiter)
	if !ok {
		return nil
	}
	waitCtx, cancel := c.callContext(ctx, c.cfg.ConfirmTimeout)
	defer cancel()
	if _, err := waiter.WaitReceipt(waitCtx, receipt.TxHash); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Controller) callContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
