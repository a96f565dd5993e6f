package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/org/creditledger/internal/api"
	"github.com/org/creditledger/internal/audit"
	"github.com/org/creditledger/internal/auth"
	"github.com/org/creditledger/internal/core"
	"github.com/org/creditledger/internal/ledger"
	"github.com/org/creditledger/internal/policy"
	"github.com/org/creditledger/internal/records"
	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLedger(t *testing.T) string {
	t.Helper()
	store := storage.NewMemoryBackend()
	avail := core.NewAvailability()
	pol := policy.NewEngine(policy.NewStaticStore(
		[]*models.Policy{models.DefaultPolicy()},
		map[string][]string{"*": {"default"}},
	))
	journal := audit.NewJournal(store, zerolog.Nop())
	svc, err := ledger.NewService(context.Background(), store, avail, pol, auth.NewVerifier(), journal, zerolog.Nop(), ledger.Config{})
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewServer(svc, avail, pol, journal, zerolog.Nop(), api.Config{}).BuildRouter())
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	outputFormat = "table"
	assumeYes = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRecordLifecycleThroughCLI(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDIT_ADDR", startLedger(t))
	t.Setenv("CREDIT_WALLET", filepath.Join(home, "wallet.yaml"))

	out, err := run(t, "records", "create", "--category", "income", "--sensitive", "85000", "--yes")
	assert.ErrorIs(t, err, records.ErrNoSigner)
	assert.Empty(t, out)

	out, err = run(t, "wallet", "new")
	require.NoError(t, err)
	assert.Regexp(t, `Address: 0x[0-9a-f]{40}`, out)

	out, err = run(t, "records", "list")
	require.NoError(t, err)
	assert.Equal(t, "No records yet.\n", out)

	out, err = run(t, "records", "create", "--category", "income", "--description", "salary", "--sensitive", "85000", "--yes")
	require.NoError(t, err)
	m := regexp.MustCompile(`Record (\S+) submitted\.`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = run(t, "records", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Income Verification")
	assert.Contains(t, out, "(you)")
	assert.Contains(t, out, "verify, reject")

	out, err = run(t, "records", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "85000")
	assert.Contains(t, out, "salary")

	out, err = run(t, "records", "verify", id, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "verified")

	out, err = run(t, "records", "stats", "--format", "json")
	require.NoError(t, err)
	var st records.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, records.Stats{Total: 1, Verified: 1}, st)

	_, err = run(t, "records", "reject", id, "--yes")
	assert.ErrorIs(t, err, records.ErrInvalidTransition)

	_, err = run(t, "records", "verify", "0-missing", "--yes")
	assert.ErrorIs(t, err, records.ErrNotFound)

	_, err = run(t, "records", "create", "--category", "crypto", "--sensitive", "1", "--yes")
	assert.ErrorIs(t, err, records.ErrInvalidInput)
}

func TestSetAddressKeepsEnvOverridesOutOfFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREDIT_ADDR", "http://one-off:1")
	t.Setenv("CREDIT_WALLET", filepath.Join(home, "elsewhere.yaml"))

	_, err := run(t, "config", "set-address", "https://ledger.internal:8545/")
	require.NoError(t, err)

	stored, err := readConfigFile(configPath())
	require.NoError(t, err)
	assert.Equal(t, "https://ledger.internal:8545", stored.Address)
	assert.Equal(t, defaultCLIConfig().Wallet, stored.Wallet, "env wallet must not be persisted")
}
