package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/creditledger/pkg/models"
)

// ErrNotFound is returned when a requested key or receipt does not exist.
var ErrNotFound = errors.New("not found")

// Backend defines the persistence interface for the ledger.
type Backend interface {
	// Entries
	GetEntry(ctx context.Context, key string) (*models.Entry, error)
	CountEntries(ctx context.Context) (int64, error)

	// Blocks are applied atomically: every write and receipt or none.
	CommitBlock(ctx context.Context, block *models.Block) error
	LatestBlock(ctx context.Context) (uint64, error)

	// Receipts
	GetReceipt(ctx context.Context, txHash string) (*models.Receipt, error)
	QueryTransactions(ctx context.Context, filter TxFilter) ([]*models.Receipt, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close()
}

// TxFilter specifies query parameters for journal retrieval.
type TxFilter struct {
	KeyPrefix string
	Signer    string
	Since     *time.Time
	Limit     int
	Offset    int
}
