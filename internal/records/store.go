// Package records keeps a typed view of the financial records held in the
// key/value ledger and applies status transitions to them.
package records

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
)

// Stats counts records by status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
}

// Snapshot is one listing of the ledger, newest record first.
type Snapshot struct {
	records []models.Record
	TakenAt time.Time
}

// Records returns a copy of the listed records.
func (s Snapshot) Records() []models.Record {
	return append([]models.Record(nil), s.records...)
}

// Len returns the number of listed records.
func (s Snapshot) Len() int { return len(s.records) }

// Find looks a record up by id.
func (s Snapshot) Find(id string) (models.Record, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return models.Record{}, false
}

// Owned returns the records whose owner matches addr, ignoring case.
func (s Snapshot) Owned(addr string) []models.Record {
	var out []models.Record
	for _, r := range s.records {
		if r.OwnedBy(addr) {
			out = append(out, r)
		}
	}
	return out
}

func (s Snapshot) Stats() Stats {
	st := Stats{Total: len(s.records)}
	for _, r := range s.records {
		switch r.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusVerified:
			st.Verified++
		case models.StatusRejected:
			st.Rejected++
		}
	}
	return st
}

// Store lists records from the ledger. Every List re-reads the whole index
// and every record it names; nothing is cached.
type Store struct {
	ledger  chain.Ledger
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewStore creates a Store. A positive timeout bounds each ledger call.
func NewStore(ledger chain.Ledger, logger zerolog.Logger, timeout time.Duration) *Store {
	return &Store{
		ledger:  ledger,
		logger:  logger.With().Str("component", "records").Logger(),
		timeout: timeout,
		now:     time.Now,
	}
}

// List reads all records, skipping any that are missing or malformed.
// Only failures of the ledger itself are returned.
func (s *Store) List(ctx context.Context) (Snapshot, error) {
	if err := s.probe(ctx); err != nil {
		return Snapshot{}, &OpError{Op: "list", Err: err}
	}
	ids, err := s.readIndex(ctx)
	if err != nil {
		return Snapshot{}, &OpError{Op: "list", Err: err}
	}

	seen := make(map[string]bool, len(ids))
	records := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			s.logger.Warn().Str("id", id).Msg("duplicate id in record index")
			continue
		}
		seen[id] = true

		raw, err := s.get(ctx, RecordKey(id))
		if err != nil {
			return Snapshot{}, &OpError{Op: "list", ID: id, Err: err}
		}
		if len(raw) == 0 {
			s.logger.Warn().Str("id", id).Msg("indexed record has no data, skipping")
			continue
		}
		rec, err := decodeBlob(id, raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("skipping undecodable record")
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	return Snapshot{records: records, TakenAt: s.now()}, nil
}

// Refresh is List under the name callers use after a write.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	return s.List(ctx)
}

func (s *Store) probe(ctx context.Context) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	ok, err := s.ledger.IsAvailable(ctx)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return ErrContractUnavailable
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	raw, err := s.ledger.GetData(ctx, key)
	if err != nil {
		return nil, classify(err)
	}
	return raw, nil
}

// readIndex returns the ids in the key index. An undecodable index is
// logged and read as empty.
func (s *Store) readIndex(ctx context.Context) ([]string, error) {
	raw, err := s.get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	ids, err := decodeIndex(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", IndexKey).Msg("record index unreadable, treating as empty")
		return nil, nil
	}
	out := ids[:0]
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

