package models

import "time"

// TxStatus is the lifecycle state of a submitted ledger transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Transaction is a signed setData call.
type Transaction struct {
	From      string `json:"from"`
	PublicKey string `json:"public_key"` // hex
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	Signature string `json:"signature"` // hex
}

// Receipt describes the outcome of a transaction.
type Receipt struct {
	TxHash      string     `json:"tx_hash"`
	Status      TxStatus   `json:"status"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	Key         string     `json:"key"`
	From        string     `json:"from"`
	ValueSize   int        `json:"value_size"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Confirmed reports whether the transaction is part of a committed block.
func (r *Receipt) Confirmed() bool {
	return r != nil && r.Status == TxConfirmed
}

// Entry is the committed value of a ledger key.
type Entry struct {
	Key       string
	Value     []byte
	Block     uint64
	UpdatedAt time.Time
}

// PendingTx pairs a verified transaction with its receipt while it waits in the mempool.
type PendingTx struct {
	Tx      *Transaction
	Receipt *Receipt
}

// Block is an ordered batch of transactions committed together.
type Block struct {
	Number      uint64
	CommittedAt time.Time
	Txs         []PendingTx
}
