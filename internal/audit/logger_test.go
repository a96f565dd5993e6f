package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
)

func TestJournalNeverLogsValues(t *testing.T) {
	var buf bytes.Buffer
	j := NewJournal(storage.NewMemoryBackend(), zerolog.New(&buf))

	j.Submitted(&models.Receipt{TxHash: "0x01", Key: "record_1", From: "0xabc", ValueSize: 9})
	j.Refused(&models.Transaction{Key: "record_1", From: "0xabc", Value: []byte("top-secret")}, errors.New("bad signature"))

	out := buf.String()
	if strings.Contains(out, "top-secret") {
		t.Errorf("journal leaked a value: %s", out)
	}
	for _, want := range []string{`"tx":"0x01"`, `"size":9`, `"component":"journal"`, "bad signature"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in journal output: %s", want, out)
		}
	}
}

func TestJournalQueryReadsCommittedBlocks(t *testing.T) {
	store := storage.NewMemoryBackend()
	j := NewJournal(store, zerolog.Nop())
	ctx := context.Background()

	at := time.Now().UTC()
	block := &models.Block{Number: 1, CommittedAt: at, Txs: []models.PendingTx{{
		Tx: &models.Transaction{Key: "record_keys", Value: []byte("[]"), From: "0xabc"},
		Receipt: &models.Receipt{TxHash: "0x0100", Status: models.TxConfirmed, BlockNumber: 1,
			Key: "record_keys", From: "0xabc", ValueSize: 2, SubmittedAt: at, ConfirmedAt: &at},
	}}}
	if err := store.CommitBlock(ctx, block); err != nil {
		t.Fatalf("commit: %v", err)
	}
	j.Committed(block)

	got, err := j.Query(ctx, storage.TxFilter{Signer: "0xabc", Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].TxHash != "0x0100" {
		t.Errorf("unexpected journal entries: %+v", got)
	}
}
