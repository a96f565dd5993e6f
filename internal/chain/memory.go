package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/org/creditledger/internal/crypto"
	"github.com/org/creditledger/pkg/models"
)

// Fault hook operations.
const (
	OpAvailable = "available"
	OpGet       = "get"
	OpSet       = "set"
)

// MemoryLedger is an in-process Ledger. With a CommitDelay, writes are
// accepted immediately but only become readable once their receipt is
// confirmed, like a ledger producing blocks.
type MemoryLedger struct {
	CommitDelay time.Duration
	// Hook, when set, runs before every operation; a non-nil error is
	// returned to the caller instead of performing it.
	Hook func(op, key string) error

	mu        sync.Mutex
	data      map[string][]byte
	receipts  map[string]*models.Receipt
	done      map[string]chan struct{}
	available bool
	height    uint64
	now       func() time.Time
}

// NewMemoryLedger creates an empty, available MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		data:      map[string][]byte{},
		receipts:  map[string]*models.Receipt{},
		done:      map[string]chan struct{}{},
		available: true,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetAvailable flips the liveness probe. An unavailable ledger refuses
// reads and writes with ErrUnavailable.
func (m *MemoryLedger) SetAvailable(v bool) {
	m.mu.Lock()
	m.available = v
	m.mu.Unlock()
}

// Put stores raw bytes under key without a transaction.
func (m *MemoryLedger) Put(key string, value []byte) {
	m.mu.Lock()
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
}

// Keys returns the stored keys with the given prefix.
func (m *MemoryLedger) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *MemoryLedger) hook(op, key string) error {
	if m.Hook == nil {
		return nil
	}
	return m.Hook(op, key)
}

func (m *MemoryLedger) IsAvailable(ctx context.Context) (bool, error) {
	if err := m.hook(OpAvailable, ""); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available, nil
}

func (m *MemoryLedger) GetData(ctx context.Context, key string) ([]byte, error) {
	if err := m.hook(OpGet, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, ErrUnavailable
	}
	return append([]byte(nil), m.data[key]...), nil
}

func (m *MemoryLedger) SetData(ctx context.Context, signer Signer, key string, value []byte) (*models.Receipt, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}
	tx := &models.Transaction{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Nonce:     uuid.NewString(),
		Timestamp: m.now().Unix(),
	}
	if err := signer.SignTx(ctx, tx); err != nil {
		return nil, err
	}
	if err := m.hook(OpSet, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, ErrUnavailable
	}
	r := &models.Receipt{
		TxHash:      crypto.TxHash(tx),
		Status:      models.TxPending,
		Key:         key,
		From:        strings.ToLower(tx.From),
		ValueSize:   len(value),
		SubmittedAt: m.now(),
	}
	m.receipts[r.TxHash] = r
	done := make(chan struct{})
	m.done[r.TxHash] = done

	if m.CommitDelay <= 0 {
		m.commitLocked(r, tx.Value, done)
	} else {
		time.AfterFunc(m.CommitDelay, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.commitLocked(r, tx.Value, done)
		})
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryLedger) commitLocked(r *models.Receipt, value []byte, done chan struct{}) {
	m.height++
	at := m.now()
	m.data[r.Key] = value
	r.Status = models.TxConfirmed
	r.BlockNumber = m.height
	r.ConfirmedAt = &at
	close(done)
}

// WaitReceipt blocks until txHash is confirmed or ctx is done.
func (m *MemoryLedger) WaitReceipt(ctx context.Context, txHash string) (*models.Receipt, error) {
	m.mu.Lock()
	done, ok := m.done[txHash]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown transaction %s", ErrRefused, txHash)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.receipts[txHash]
	return &cp, nil
}
