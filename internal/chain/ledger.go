// Package chain is the client side of the key/value ledger: the interface
// the record core consumes plus its HTTP and in-process implementations.
package chain

import (
	"context"
	"errors"

	"github.com/org/creditledger/pkg/models"
)

var (
	ErrUnavailable  = errors.New("ledger unavailable")
	ErrUserRejected = errors.New("user rejected transaction")
	ErrNetwork      = errors.New("ledger network error")
	ErrNoSigner     = errors.New("no signer")
	ErrRefused      = errors.New("ledger refused transaction")
)

// Ledger is the key/value contract. GetData returns empty bytes for an
// absent key. SetData returns once the transaction is accepted; the write
// may not be visible to GetData until the receipt is confirmed.
type Ledger interface {
	IsAvailable(ctx context.Context) (bool, error)
	GetData(ctx context.Context, key string) ([]byte, error)
	SetData(ctx context.Context, signer Signer, key string, value []byte) (*models.Receipt, error)
}

// Signer is a write capability. SignTx fills in From, PublicKey and
// Signature, or returns ErrUserRejected when the holder declines.
type Signer interface {
	Address() string
	SignTx(ctx context.Context, tx *models.Transaction) error
}

// ReceiptWaiter is implemented by ledgers that can block until a submitted
// transaction is confirmed.
type ReceiptWaiter interface {
	WaitReceipt(ctx context.Context, txHash string) (*models.Receipt, error)
}
