package chain_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/org/creditledger/internal/api"
	"github.com/org/creditledger/internal/audit"
	"github.com/org/creditledger/internal/auth"
	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/internal/core"
	"github.com/org/creditledger/internal/ledger"
	"github.com/org/creditledger/internal/policy"
	"github.com/org/creditledger/internal/storage"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerServer struct {
	url   string
	svc   *ledger.Service
	avail *core.Availability
}

func startLedgerServer(t *testing.T, cfg ledger.Config) *ledgerServer {
	t.Helper()
	store := storage.NewMemoryBackend()
	avail := core.NewAvailability()
	pol := policy.NewEngine(policy.NewStaticStore(
		[]*models.Policy{models.DefaultPolicy()},
		map[string][]string{"*": {"default"}},
	))
	journal := audit.NewJournal(store, zerolog.Nop())
	svc, err := ledger.NewService(context.Background(), store, avail, pol, auth.NewVerifier(), journal, zerolog.Nop(), cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewServer(svc, avail, pol, journal, zerolog.Nop(), api.Config{}).BuildRouter())
	t.Cleanup(srv.Close)
	return &ledgerServer{url: srv.URL, svc: svc, avail: avail}
}

func newHTTPLedger(t *testing.T, addr string) *chain.HTTPLedger {
	t.Helper()
	l, err := chain.NewHTTPLedger(chain.HTTPConfig{Address: addr, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	return l
}

func TestHTTPLedgerRoundTrip(t *testing.T) {
	srv := startLedgerServer(t, ledger.Config{})
	l := newHTTPLedger(t, srv.url)
	ctx := context.Background()

	ok, err := l.IsAvailable(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := l.GetData(ctx, "record_keys")
	require.NoError(t, err)
	assert.Empty(t, v, "absent key reads as empty bytes")

	signer := newKeySigner(t)
	r, err := l.SetData(ctx, signer, "record_keys", []byte(`["1-abc"]`))
	require.NoError(t, err)
	assert.True(t, r.Confirmed())
	assert.Equal(t, signer.Address(), r.From)

	v, err = l.GetData(ctx, "record_keys")
	require.NoError(t, err)
	assert.Equal(t, `["1-abc"]`, string(v))
}

func TestHTTPLedgerWaitReceipt(t *testing.T) {
	srv := startLedgerServer(t, ledger.Config{BlockInterval: time.Hour})
	l := newHTTPLedger(t, srv.url)
	ctx := context.Background()

	r, err := l.SetData(ctx, newKeySigner(t), "record_1", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, r.Status)

	v, err := l.GetData(ctx, "record_1")
	require.NoError(t, err)
	assert.Empty(t, v, "pending write is not readable yet")

	go func() {
		time.Sleep(30 * time.Millisecond)
		srv.svc.Commit(context.Background()) //nolint:errcheck
	}()
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	confirmed, err := l.WaitReceipt(waitCtx, r.TxHash)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed())

	v, err = l.GetData(ctx, "record_1")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(v))
}

func TestHTTPLedgerErrors(t *testing.T) {
	srv := startLedgerServer(t, ledger.Config{})
	l := newHTTPLedger(t, srv.url)
	ctx := context.Background()

	_, err := l.SetData(ctx, nil, "record_keys", []byte("[]"))
	assert.ErrorIs(t, err, chain.ErrNoSigner)

	declining := newKeySigner(t)
	declining.decline = true
	_, err = l.SetData(ctx, declining, "record_keys", []byte("[]"))
	assert.ErrorIs(t, err, chain.ErrUserRejected)

	_, err = l.SetData(ctx, newKeySigner(t), "config_fee", []byte("1"))
	assert.ErrorIs(t, err, chain.ErrRefused)

	srv.avail.Pause("maintenance")
	ok, err := l.IsAvailable(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = l.GetData(ctx, "record_keys")
	assert.ErrorIs(t, err, chain.ErrUnavailable)
}

func TestHTTPLedgerNetworkFault(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newHTTPLedger(t, addr).IsAvailable(context.Background())
	assert.ErrorIs(t, err, chain.ErrNetwork)
}

func TestHTTPLedgerClientTimeoutIsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	l, err := chain.NewHTTPLedger(chain.HTTPConfig{Address: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = l.IsAvailable(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, chain.ErrNetwork)
}

func TestHTTPLedgerMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>")) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	_, err := newHTTPLedger(t, srv.URL).IsAvailable(context.Background())
	assert.ErrorIs(t, err, chain.ErrNetwork)
}
