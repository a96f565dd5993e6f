package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/org/creditledger/pkg/models"
)

// MemoryBackend is a Backend held entirely in process memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	entries  map[string]*models.Entry
	receipts map[string]*models.Receipt
	journal  []*models.Receipt // commit order
	height   uint64
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries:  map[string]*models.Entry{},
		receipts: map[string]*models.Receipt{},
	}
}

func (m *MemoryBackend) GetEntry(_ context.Context, key string) (*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	cp.Value = append([]byte(nil), e.Value...)
	return &cp, nil
}

func (m *MemoryBackend) CountEntries(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryBackend) CommitBlock(_ context.Context, block *models.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range block.Txs {
		m.entries[p.Tx.Key] = &models.Entry{
			Key:       p.Tx.Key,
			Value:     append([]byte(nil), p.Tx.Value...),
			Block:     block.Number,
			UpdatedAt: block.CommittedAt,
		}
		r := *p.Receipt
		m.receipts[r.TxHash] = &r
		m.journal = append(m.journal, &r)
	}
	if block.Number > m.height {
		m.height = block.Number
	}
	return nil
}

func (m *MemoryBackend) LatestBlock(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height, nil
}

func (m *MemoryBackend) GetReceipt(_ context.Context, txHash string) (*models.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[txHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryBackend) QueryTransactions(_ context.Context, filter TxFilter) ([]*models.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Receipt
	// newest first, matching the postgres ordering
	for i := len(m.journal) - 1; i >= 0; i-- {
		r := m.journal[i]
		if filter.KeyPrefix != "" && !strings.HasPrefix(r.Key, filter.KeyPrefix) {
			continue
		}
		if filter.Signer != "" && !strings.EqualFold(r.From, filter.Signer) {
			continue
		}
		if filter.Since != nil && r.SubmittedAt.Before(*filter.Since) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Close() {}
