package wallet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/internal/crypto"
	"github.com/org/creditledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.yaml")

	w, err := Create(path, false)
	require.NoError(t, err)
	assert.Regexp(t, `^0x[0-9a-f]{40}$`, w.Address)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, w.Address, loaded.Address)
	assert.True(t, w.CreatedAt.Equal(loaded.CreatedAt))

	_, err = Create(path, false)
	assert.ErrorIs(t, err, ErrWalletExists)

	replaced, err := Create(path, true)
	require.NoError(t, err)
	assert.NotEqual(t, w.Address, replaced.Address)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrNoWallet)

	cases := map[string]string{
		"garbage":  "::: not yaml",
		"version":  "version: 7\nseed: 00\n",
		"seed hex": "version: 1\nseed: zz\n",
		"short":    "version: 1\nseed: \"0011\"\n",
		"mismatch": "version: 1\naddress: \"0x0000000000000000000000000000000000000000\"\nseed: 000102030405060708090a0b0c0d0e0f\n",
	}
	for name, body := range cases {
		p := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(p, []byte(body), 0600))
		_, err := Load(p)
		assert.ErrorIs(t, err, ErrCorruptWallet, name)
	}
}

func TestSignerApproval(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "wallet.yaml"), false)
	require.NoError(t, err)
	ctx := context.Background()

	var asked *models.Transaction
	signer := w.Signer(func(_ context.Context, tx *models.Transaction) (bool, error) {
		asked = tx
		return true, nil
	})
	assert.Equal(t, w.Address, signer.Address())

	tx := &models.Transaction{Key: "record_keys", Value: []byte("[]"), Nonce: "n", Timestamp: time.Now().Unix()}
	require.NoError(t, signer.SignTx(ctx, tx))
	assert.Same(t, tx, asked)
	assert.Equal(t, w.Address, tx.From)
	assert.NoError(t, crypto.VerifyTx(tx))

	declining := w.Signer(func(context.Context, *models.Transaction) (bool, error) { return false, nil })
	tx2 := &models.Transaction{Key: "record_keys", Nonce: "n2"}
	assert.ErrorIs(t, declining.SignTx(ctx, tx2), chain.ErrUserRejected)
	assert.Empty(t, tx2.Signature)

	require.NoError(t, w.Signer(nil).SignTx(ctx, tx2))
}

func TestWatchReportsIdentityChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.yaml")
	first, err := Create(path, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := Watch(ctx, path)
	require.NoError(t, err)

	next := func() Event {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("no wallet event")
			return Event{}
		}
	}

	second, err := Create(path, true)
	require.NoError(t, err)
	require.NotEqual(t, first.Address, second.Address)
	ev := next()
	require.NoError(t, ev.Err)
	assert.Equal(t, second.Address, ev.Address)

	require.NoError(t, os.Remove(path))
	ev = next()
	assert.NoError(t, ev.Err)
	assert.Empty(t, ev.Address)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 5*time.Second, 10*time.Millisecond)
}
