package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/org/creditledger/internal/audit"
	"github.com/org/creditledger/internal/auth"
	"github.com/org/creditledger/internal/core"
	"github.com/org/creditledger/internal/crypto"
	"github.com/org/creditledger/internal/policy"
	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized = errors.New("transaction signature rejected")
	ErrForbidden    = errors.New("access to this key is not allowed")
	ErrDuplicateTx  = errors.New("transaction already submitted")
	ErrTxFailed     = errors.New("transaction could not be committed")
)

// DefaultMaxCommitAttempts is how many failed blocks a transaction may sit
// in while the store stays reachable before it is dropped.
const DefaultMaxCommitAttempts = 3

// Config tunes block production.
type Config struct {
	// BlockInterval is how often pending transactions are committed.
	// Zero commits every transaction synchronously on submit.
	BlockInterval time.Duration
	// MaxBlockTxs caps the transactions per block; zero means unlimited.
	MaxBlockTxs int
	// MaxCommitAttempts bounds retries of a transaction the store keeps
	// refusing; zero means DefaultMaxCommitAttempts.
	MaxCommitAttempts int
}

// Service is the ledger: committed key/value state plus a mempool of
// accepted transactions waiting for the next block.
type Service struct {
	store    storage.Backend
	avail    *core.Availability
	policy   *policy.Engine
	verifier *auth.Verifier
	journal  *audit.Journal
	logger   zerolog.Logger
	cfg      Config
	now      func() time.Time

	commitMu sync.Mutex // serialises block production

	mu       sync.Mutex
	pending  []models.PendingTx
	byHash   map[string]*models.Receipt // pending and failed receipts
	attempts map[string]int
	height   uint64
}

// NewService creates a Service resuming at the store's latest block.
func NewService(ctx context.Context, store storage.Backend, avail *core.Availability, pol *policy.Engine,
	verifier *auth.Verifier, journal *audit.Journal, logger zerolog.Logger, cfg Config) (*Service, error) {
	height, err := store.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading latest block: %w", err)
	}
	blockHeight.Set(float64(height))
	if n, err := store.CountEntries(ctx); err == nil {
		entryCount.Set(float64(n))
	}
	if cfg.MaxCommitAttempts <= 0 {
		cfg.MaxCommitAttempts = DefaultMaxCommitAttempts
	}
	return &Service{
		store:    store,
		avail:    avail,
		policy:   pol,
		verifier: verifier,
		journal:  journal,
		logger:   logger.With().Str("component", "ledger").Logger(),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		byHash:   map[string]*models.Receipt{},
		attempts: map[string]int{},
		height:   height,
	}, nil
}

// IsAvailable is the liveness probe exposed to clients.
func (s *Service) IsAvailable() bool {
	return s.avail.IsAvailable()
}

// Get returns the committed entry for key. Pending writes are not visible.
// Reads are unsigned, so only policies bound to "*" grant read.
func (s *Service) Get(ctx context.Context, key string) (*models.Entry, error) {
	if err := s.avail.Check(); err != nil {
		return nil, err
	}
	if !s.policy.Allowed(ctx, "", models.CapRead, key) {
		return nil, ErrForbidden
	}
	return s.store.GetEntry(ctx, key)
}

// Submit verifies tx and queues it for the next block. With a zero
// BlockInterval the returned receipt is already confirmed, and a
// transaction that could not be committed is dropped before Submit returns.
func (s *Service) Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	if err := s.avail.Check(); err != nil {
		return nil, err
	}
	if err := s.verifier.Verify(tx); err != nil {
		txTotal.WithLabelValues("unauthorized").Inc()
		s.journal.Refused(tx, err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !s.policy.Allowed(ctx, tx.From, models.CapWrite, tx.Key) {
		txTotal.WithLabelValues("forbidden").Inc()
		s.journal.Refused(tx, ErrForbidden)
		return nil, ErrForbidden
	}

	hash := crypto.TxHash(tx)
	if _, err := s.store.GetReceipt(ctx, hash); err == nil {
		return nil, ErrDuplicateTx
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	r := &models.Receipt{
		TxHash:      hash,
		Status:      models.TxPending,
		Key:         tx.Key,
		From:        strings.ToLower(tx.From),
		ValueSize:   len(tx.Value),
		SubmittedAt: s.now(),
	}

	s.mu.Lock()
	if _, dup := s.byHash[hash]; dup {
		s.mu.Unlock()
		return nil, ErrDuplicateTx
	}
	s.pending = append(s.pending, models.PendingTx{Tx: tx, Receipt: r})
	s.byHash[hash] = r
	mempoolSize.Set(float64(len(s.pending)))
	s.mu.Unlock()

	txTotal.WithLabelValues("accepted").Inc()
	s.journal.Submitted(r)

	if s.cfg.BlockInterval == 0 {
		return s.commitNow(ctx, hash)
	}
	cp := *r
	return &cp, nil
}

// commitNow commits until hash is settled. A transaction still pending
// after a failed commit is abandoned so it cannot land after the caller was
// told it failed.
func (s *Service) commitNow(ctx context.Context, hash string) (*models.Receipt, error) {
	for s.isPending(hash) {
		if _, err := s.Commit(ctx); err != nil && s.abandon(hash, err) {
			return nil, err
		}
	}
	r, err := s.Receipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if r.Status == models.TxFailed {
		return nil, fmt.Errorf("%w: %s", ErrTxFailed, r.Error)
	}
	return r, nil
}

func (s *Service) isPending(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byHash[hash]
	return ok && r.Status == models.TxPending
}

// abandon fails hash if it is still pending and reports whether it did.
func (s *Service) abandon(hash string, reason error) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byHash[hash]; !ok || r.Status != models.TxPending {
		return false
	}
	s.failLocked(hash, reason)
	return true
}

// Receipt returns the receipt of a pending or confirmed transaction.
func (s *Service) Receipt(ctx context.Context, hash string) (*models.Receipt, error) {
	s.mu.Lock()
	if r, ok := s.byHash[hash]; ok {
		cp := *r
		s.mu.Unlock()
		return &cp, nil
	}
	s.mu.Unlock()
	return s.store.GetReceipt(ctx, hash)
}

// Commit writes the pending transactions as the next block. It returns nil
// when there was nothing to commit.
//
// When the store refuses a block its transactions are retried one per
// block. Those that still fail while others commit are marked failed and
// dropped. When none commit, each failure counts as an attempt, unless the
// store is unreachable.
func (s *Service) Commit(ctx context.Context) (*models.Block, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	n := len(s.pending)
	if s.cfg.MaxBlockTxs > 0 && n > s.cfg.MaxBlockTxs {
		n = s.cfg.MaxBlockTxs
	}
	if n == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	batch := append([]models.PendingTx(nil), s.pending[:n]...)
	s.mu.Unlock()

	block, err := s.commitBatch(ctx, batch)
	if err == nil {
		return block, nil
	}
	if len(batch) == 1 {
		s.countFailures(ctx, []commitFailure{{tx: batch[0], err: err}})
		return nil, err
	}

	s.logger.Warn().Err(err).Int("txs", len(batch)).Msg("block refused, committing transactions one by one")
	var failures []commitFailure
	var last *models.Block
	for _, p := range batch {
		b, err := s.commitBatch(ctx, []models.PendingTx{p})
		if err != nil {
			failures = append(failures, commitFailure{tx: p, err: err})
			continue
		}
		last = b
	}
	if last == nil {
		s.countFailures(ctx, failures)
		return nil, failures[0].err
	}
	s.mu.Lock()
	for _, f := range failures {
		s.failLocked(f.tx.Receipt.TxHash, f.err)
	}
	s.mu.Unlock()
	return last, nil
}

type commitFailure struct {
	tx  models.PendingTx
	err error
}

// commitBatch writes batch as the next block and removes it from the mempool.
func (s *Service) commitBatch(ctx context.Context, batch []models.PendingTx) (*models.Block, error) {
	number := s.Height() + 1
	at := s.now()
	block := &models.Block{Number: number, CommittedAt: at}
	for _, p := range batch {
		r := *p.Receipt
		r.Status = models.TxConfirmed
		r.BlockNumber = number
		r.ConfirmedAt = &at
		block.Txs = append(block.Txs, models.PendingTx{Tx: p.Tx, Receipt: &r})
	}

	if err := s.store.CommitBlock(ctx, block); err != nil {
		s.logger.Error().Err(err).Uint64("block", number).Int("txs", len(batch)).Msg("commit failed")
		return nil, fmt.Errorf("committing block %d: %w", number, err)
	}

	done := make(map[string]bool, len(batch))
	s.mu.Lock()
	for _, p := range batch {
		done[p.Receipt.TxHash] = true
		delete(s.byHash, p.Receipt.TxHash)
		delete(s.attempts, p.Receipt.TxHash)
	}
	s.removeLocked(done)
	s.height = number
	s.mu.Unlock()

	blockHeight.Set(float64(number))
	if n, err := s.store.CountEntries(ctx); err == nil {
		entryCount.Set(float64(n))
	}
	txTotal.WithLabelValues("confirmed").Add(float64(len(block.Txs)))
	s.journal.Committed(block)
	return block, nil
}

// countFailures charges an attempt to each failed transaction and drops the
// ones out of attempts. An unreachable store charges nothing.
func (s *Service) countFailures(ctx context.Context, failures []commitFailure) {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("store unreachable, transactions stay pending")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range failures {
		hash := f.tx.Receipt.TxHash
		s.attempts[hash]++
		if s.attempts[hash] >= s.cfg.MaxCommitAttempts {
			s.failLocked(hash, f.err)
		}
	}
}

// failLocked marks a pending transaction failed and takes it out of the
// mempool. The failed receipt stays queryable. Callers hold s.mu.
func (s *Service) failLocked(hash string, reason error) {
	r, ok := s.byHash[hash]
	if !ok {
		return
	}
	r.Status = models.TxFailed
	r.Error = reason.Error()
	delete(s.attempts, hash)
	s.removeLocked(map[string]bool{hash: true})

	txTotal.WithLabelValues("failed").Inc()
	s.journal.Failed(r, reason)
}

func (s *Service) removeLocked(hashes map[string]bool) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if !hashes[p.Receipt.TxHash] {
			kept = append(kept, p)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
	mempoolSize.Set(float64(len(s.pending)))
}

// Run produces blocks every BlockInterval until ctx is done, then flushes
// whatever is still pending.
func (s *Service) Run(ctx context.Context) {
	if s.cfg.BlockInterval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(s.cfg.BlockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			for s.Pending() > 0 {
				if _, err := s.Commit(flushCtx); err != nil {
					break
				}
			}
			cancel()
			return
		case <-ticker.C:
			if _, err := s.Commit(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("block production failed")
			}
		}
	}
}

// Pending returns the mempool size.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Height returns the number of the latest committed block.
func (s *Service) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// EntryCount returns the number of committed keys.
func (s *Service) EntryCount(ctx context.Context) (int64, error) {
	return s.store.CountEntries(ctx)
}
