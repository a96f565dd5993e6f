package records

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0xA11CE00000000000000000000000000000000001"
	bob   = "0xb0b0000000000000000000000000000000000002"
)

type stubSigner struct {
	addr    string
	decline bool
}

func (s *stubSigner) Address() string { return s.addr }

func (s *stubSigner) SignTx(_ context.Context, tx *models.Transaction) error {
	if s.decline {
		return chain.ErrUserRejected
	}
	tx.From = s.addr
	tx.Signature = "00"
	return nil
}

// callCounter counts ledger operations through the MemoryLedger hook.
type callCounter struct {
	mu   sync.Mutex
	sets map[string]int
	all  int
}

func countCalls(l *chain.MemoryLedger) *callCounter {
	c := &callCounter{sets: map[string]int{}}
	l.Hook = func(op, key string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.all++
		if op == chain.OpSet {
			c.sets[key]++
		}
		return nil
	}
	return c
}

func (c *callCounter) setsOf(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}

func (c *callCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all
}

type harness struct {
	ledger *chain.MemoryLedger
	store  *Store
	ctrl   *Controller
	clock  time.Time
}

func newHarness(t *testing.T, cfg ControllerConfig) *harness {
	t.Helper()
	h := &harness{ledger: chain.NewMemoryLedger(), clock: time.Unix(1700000000, 0)}
	h.store = NewStore(h.ledger, zerolog.Nop(), 0)
	h.ctrl = NewController(h.ledger, h.store, zerolog.Nop(), cfg)
	h.ctrl.now = func() time.Time {
		h.clock = h.clock.Add(time.Second)
		return h.clock
	}
	return h
}

// putRecord stores a record blob and returns its id.
func putRecord(t *testing.T, l *chain.MemoryLedger, r models.Record) {
	t.Helper()
	raw, err := encodeBlob(r)
	require.NoError(t, err)
	l.Put(RecordKey(r.ID), raw)
}

func putIndex(t *testing.T, l *chain.MemoryLedger, ids ...string) {
	t.Helper()
	raw, err := json.Marshal(ids)
	require.NoError(t, err)
	l.Put(IndexKey, raw)
}

func ids(recs []models.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
