package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0600))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, found, err := loadConfig(filepath.Join(dir, "none.yaml"), filepath.Join(dir, "none.env"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, ":8545", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.BlockInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	require.Len(t, cfg.Policies, 1)
	assert.Equal(t, "default", cfg.Policies[0].Name)
	assert.Equal(t, []string{"default"}, cfg.Bindings["*"])
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ledger.yaml", `
listen_addr: ":9000"
block_interval: 500ms
max_block_txs: 10
policies:
  - name: records
    keys:
      "record_*":
        capabilities: [read, write]
bindings:
  "0xABC": [records]
`)
	env := writeFile(t, dir, "test.env", "LEDGER_ADMIN_TOKEN=from-dotenv\n")
	t.Setenv("LEDGER_LISTEN_ADDR", ":9100")
	t.Setenv("LEDGER_ADMIN_TOKEN", "")
	os.Unsetenv("LEDGER_ADMIN_TOKEN")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/ledger")

	cfg, found, err := loadConfig(path, env)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, "postgres://u:p@db/ledger", cfg.DBUrl)
	assert.Equal(t, "from-dotenv", cfg.AdminToken)
	assert.Equal(t, 500*time.Millisecond, cfg.BlockInterval)
	assert.Equal(t, 10, cfg.MaxBlockTxs)
	require.Len(t, cfg.Policies, 1)
	assert.True(t, cfg.Policies[0].Rules["record_*"].HasCapability("write"))
	assert.Equal(t, []string{"records"}, cfg.Bindings["0xABC"])
}

func TestLoadConfigRejectsUnknownPolicyBinding(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ledger.yaml", `
policies:
  - name: records
bindings:
  "*": [nope]
`)
	_, _, err := loadConfig(path, filepath.Join(dir, "none.env"))
	assert.ErrorContains(t, err, "unknown policy")
}

func TestLoadConfigRejectsZeroCommitAttempts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ledger.yaml", "max_commit_attempts: 0\n")
	_, _, err := loadConfig(path, filepath.Join(dir, "none.env"))
	assert.ErrorContains(t, err, "max_commit_attempts")
}

func TestLoadConfigBadEnvDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGER_BLOCK_INTERVAL", "soon")
	_, _, err := loadConfig(filepath.Join(dir, "none.yaml"), filepath.Join(dir, "none.env"))
	assert.Error(t, err)
}

func TestLoadConfigDevFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGER_DEV", "true")
	cfg, _, err := loadConfig(filepath.Join(dir, "none.yaml"), filepath.Join(dir, "none.env"))
	require.NoError(t, err)
	assert.True(t, cfg.Dev)
}
