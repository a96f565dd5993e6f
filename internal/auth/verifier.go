package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/org/creditledger/internal/crypto"
	"github.com/org/creditledger/pkg/models"
)

// DefaultMaxSkew bounds how far a transaction timestamp may drift from the
// ledger clock.
const DefaultMaxSkew = 5 * time.Minute

// DefaultMaxValueSize bounds the size of a single ledger value.
const DefaultMaxValueSize = 256 << 10

var (
	ErrUnsigned      = errors.New("transaction is not signed")
	ErrStale         = errors.New("transaction timestamp outside allowed skew")
	ErrInvalidTx     = errors.New("invalid transaction")
	ErrValueTooLarge = errors.New("value exceeds size limit")
)

// Verifier authenticates signed ledger transactions.
type Verifier struct {
	MaxSkew      time.Duration
	MaxValueSize int
	now          func() time.Time
}

// NewVerifier creates a Verifier with the default limits.
func NewVerifier() *Verifier {
	return &Verifier{
		MaxSkew:      DefaultMaxSkew,
		MaxValueSize: DefaultMaxValueSize,
		now:          time.Now,
	}
}

// Verify checks shape, freshness and signature of tx.
func (v *Verifier) Verify(tx *models.Transaction) error {
	if tx == nil || tx.Key == "" || tx.Nonce == "" {
		return fmt.Errorf("%w: key and nonce are required", ErrInvalidTx)
	}
	if !utf8.ValidString(tx.Key) || strings.ContainsRune(tx.Key, 0) {
		return fmt.Errorf("%w: key must be valid UTF-8 without NUL", ErrInvalidTx)
	}
	if tx.Value == nil {
		return fmt.Errorf("%w: value is required", ErrInvalidTx)
	}
	if tx.Signature == "" || tx.PublicKey == "" || tx.From == "" {
		return ErrUnsigned
	}
	if v.MaxValueSize > 0 && len(tx.Value) > v.MaxValueSize {
		return fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(tx.Value))
	}
	if v.MaxSkew > 0 {
		drift := v.now().Sub(time.Unix(tx.Timestamp, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > v.MaxSkew {
			return ErrStale
		}
	}
	return crypto.VerifyTx(tx)
}
