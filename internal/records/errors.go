package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/org/creditledger/internal/chain"
)

var (
	ErrContractUnavailable = errors.New("contract unavailable")
	ErrDecodeFault         = errors.New("malformed record data")
	ErrNotFound            = errors.New("record not found")
	ErrNoSigner            = errors.New("no signer connected")
	ErrWriteRejected       = errors.New("transaction rejected by user")
	ErrNetworkFault        = errors.New("network fault")
	ErrTimeout             = errors.New("ledger call timed out")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// OpError names the operation and record a failure belongs to.
type OpError struct {
	Op  string
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// classify maps ledger failures onto the record error kinds, keeping the
// original error in the chain.
func classify(err error) error {
	var kind error
	switch {
	case errors.Is(err, chain.ErrUserRejected):
		kind = ErrWriteRejected
	case errors.Is(err, chain.ErrNoSigner):
		kind = ErrNoSigner
	case errors.Is(err, chain.ErrUnavailable):
		kind = ErrContractUnavailable
	case errors.Is(err, chain.ErrNetwork):
		kind = ErrNetworkFault
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
