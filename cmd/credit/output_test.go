package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/internal/records"
	"github.com/org/creditledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewer = "0xabc0000000000000000000000000000000000def"

func sampleRecords(t *testing.T) []models.Record {
	t.Helper()
	payload, err := records.EncodePayload(records.PayloadSource{Category: models.CategoryDebt, Description: "car", SensitiveInfo: "12000"})
	require.NoError(t, err)
	return []models.Record{
		{ID: "2-bbbbbbb", Payload: payload, CreatedAt: 200, Owner: strings.ToUpper(viewer[:2]) + viewer[2:], Category: models.CategoryDebt, Status: models.StatusPending},
		{ID: "1-aaaaaaa", Payload: payload, CreatedAt: 100, Owner: "0x1111111111111111111111111111111111111111", Category: models.CategoryIncome, Status: models.StatusVerified},
	}
}

func TestShortAddr(t *testing.T) {
	assert.Equal(t, "0xabc0...0def", shortAddr(viewer))
	assert.Equal(t, "0x12", shortAddr("0x12"))
}

func TestPrintRecordsTable(t *testing.T) {
	outputFormat = "table"
	var buf bytes.Buffer
	printRecords(&buf, sampleRecords(t), viewer)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "Debt Information")
	assert.Contains(t, lines[1], "(you)")
	assert.Contains(t, lines[1], "verify, reject")
	assert.Contains(t, lines[2], "Income Verification")
	assert.NotContains(t, lines[2], "verify")

	buf.Reset()
	printRecords(&buf, nil, viewer)
	assert.Equal(t, "No records yet.\n", buf.String())
}

func TestPrintRecordsJSON(t *testing.T) {
	outputFormat = "json"
	defer func() { outputFormat = "table" }()

	var buf bytes.Buffer
	printRecords(&buf, nil, viewer)
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	printRecords(&buf, sampleRecords(t), viewer)
	var got []models.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleRecords(t), got)
}

func TestPrintRecordDecodesForOwnerOnly(t *testing.T) {
	outputFormat = "table"
	recs := sampleRecords(t)

	var buf bytes.Buffer
	printRecord(&buf, recs[0], viewer)
	assert.Contains(t, buf.String(), "12000")

	buf.Reset()
	printRecord(&buf, recs[1], viewer)
	assert.NotContains(t, buf.String(), "12000")
	assert.Contains(t, buf.String(), "FHE-")
}

func TestPrintStats(t *testing.T) {
	outputFormat = "table"
	var buf bytes.Buffer
	printStats(&buf, records.Stats{Total: 3, Pending: 1, Verified: 1, Rejected: 1})
	assert.Contains(t, buf.String(), "Total")
	assert.Contains(t, buf.String(), "3")
}

func TestDescribe(t *testing.T) {
	rejected := &records.OpError{Op: "create", Err: fmt.Errorf("%w: %w", records.ErrWriteRejected, chain.ErrUserRejected)}
	assert.Equal(t, "Transaction rejected by user", describe(rejected))
	assert.Contains(t, describe(&records.OpError{Op: "create", Err: records.ErrNoSigner}), "credit wallet new")
	assert.Equal(t, "Record not found", describe(records.ErrNotFound))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, models.CategoryIncome, parseCategory("income"))
	assert.Equal(t, models.CategoryOther, parseCategory(" OTHER "))
	assert.Equal(t, models.Category("crypto"), parseCategory("crypto"))
}

func TestPromptApprover(t *testing.T) {
	var out bytes.Buffer
	approve := promptApprover(strings.NewReader("y\nno\n"), &out)
	tx := &models.Transaction{Key: "record_keys", Value: []byte("[]")}

	ok, err := approve(t.Context(), tx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), `"record_keys"`)

	ok, err = approve(t.Context(), tx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = approve(t.Context(), tx)
	require.NoError(t, err)
	assert.False(t, ok, "EOF declines")
}
