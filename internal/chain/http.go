package chain

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/org/creditledger/pkg/models"
)

// HTTPConfig configures an HTTPLedger.
type HTTPConfig struct {
	Address      string
	TLSCACert    string
	Timeout      time.Duration
	PollInterval time.Duration // receipt polling in WaitReceipt
}

// HTTPLedger talks to a ledger server over its /v1/ledger API. Transactions
// are signed locally by the caller's Signer.
type HTTPLedger struct {
	addr string
	poll time.Duration
	http *http.Client
	now  func() time.Time
}

// NewHTTPLedger creates an HTTPLedger.
func NewHTTPLedger(cfg HTTPConfig) (*HTTPLedger, error) {
	if cfg.Address == "" {
		return nil, errors.New("ledger address is required")
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSCACert != "" {
		data, err := os.ReadFile(cfg.TLSCACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates in %s", cfg.TLSCACert)
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &HTTPLedger{
		addr: strings.TrimRight(cfg.Address, "/"),
		poll: cfg.PollInterval,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
		now: time.Now,
	}, nil
}

func (l *HTTPLedger) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.addr+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transportError(err)
	}
	return resp, nil
}

// transportError reports the client's own timeout as a deadline, so it is
// told apart from a broken connection.
func transportError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// IsAvailable probes GET /v1/ledger/available.
func (l *HTTPLedger) IsAvailable(ctx context.Context) (bool, error) {
	resp, err := l.do(ctx, http.MethodGet, "/v1/ledger/available", nil)
	if err != nil {
		return false, err
	}
	var out struct {
		Available bool `json:"available"`
	}
	if err := parseResponse(resp, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// GetData reads a committed value. A 404 is an absent key, not an error.
func (l *HTTPLedger) GetData(ctx context.Context, key string) ([]byte, error) {
	resp, err := l.do(ctx, http.MethodGet, "/v1/ledger/data/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}
	var out struct {
		Value []byte `json:"value"`
	}
	if err := parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// SetData signs and submits a write of value under key.
func (l *HTTPLedger) SetData(ctx context.Context, signer Signer, key string, value []byte) (*models.Receipt, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}
	tx := &models.Transaction{
		Key:       key,
		Value:     value,
		Nonce:     uuid.NewString(),
		Timestamp: l.now().Unix(),
	}
	if err := signer.SignTx(ctx, tx); err != nil {
		return nil, err
	}

	resp, err := l.do(ctx, http.MethodPost, "/v1/ledger/tx", tx)
	if err != nil {
		return nil, err
	}
	var receipt models.Receipt
	if err := parseResponse(resp, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// WaitReceipt polls the receipt of txHash until it is confirmed.
func (l *HTTPLedger) WaitReceipt(ctx context.Context, txHash string) (*models.Receipt, error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		resp, err := l.do(ctx, http.MethodGet, "/v1/ledger/tx/"+url.PathEscape(txHash), nil)
		if err != nil {
			return nil, err
		}
		var receipt models.Receipt
		if err := parseResponse(resp, &receipt); err != nil {
			return nil, err
		}
		if receipt.Confirmed() {
			return &receipt, nil
		}
		if receipt.Status == models.TxFailed {
			return nil, fmt.Errorf("%w: transaction %s failed: %s", ErrRefused, txHash, receipt.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// parseResponse decodes a successful body into dst and maps error statuses
// onto the package sentinels.
func parseResponse(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var body struct {
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(data, &body) == nil && len(body.Errors) > 0 {
			msg = body.Errors[0]
		}
		switch {
		case resp.StatusCode == http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", ErrUnavailable, msg)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: %s", ErrNetwork, msg)
		default:
			return fmt.Errorf("%w: %s", ErrRefused, msg)
		}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrNetwork, err)
	}
	return nil
}
