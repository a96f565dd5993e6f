package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/internal/records"
	"github.com/org/creditledger/internal/wallet"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

var errNoTerminal = errors.New("cannot ask for confirmation without a terminal; pass --yes to sign")

// app bundles what the record commands need.
type app struct {
	store *records.Store
	ctrl  *records.Controller
}

func newApp() (*app, error) {
	l, err := chain.NewHTTPLedger(chain.HTTPConfig{
		Address:   cfg.Address,
		TLSCACert: cfg.TLSCACert,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	store := records.NewStore(l, log.Logger, cfg.Timeout)
	ctrl := records.NewController(l, store, log.Logger, records.ControllerConfig{
		Timeout:        cfg.Timeout,
		WaitConfirmed:  cfg.WaitConfirmed,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})
	return &app{store: store, ctrl: ctrl}, nil
}

// loadWallet returns the configured wallet, or nil when none exists yet.
func loadWallet() (*wallet.Wallet, error) {
	w, err := wallet.Load(cfg.Wallet)
	if errors.Is(err, wallet.ErrNoWallet) {
		return nil, nil
	}
	return w, err
}

// viewerAddress is the address records are shown relative to; empty
// without a wallet.
func viewerAddress() string {
	w, err := loadWallet()
	if err != nil || w == nil {
		return ""
	}
	return w.Address
}

// signer returns the wallet's write capability. The result is a nil
// interface when no wallet exists so the controller reports ErrNoSigner.
func signer() (chain.Signer, error) {
	w, err := loadWallet()
	if err != nil || w == nil {
		return nil, err
	}
	return w.Signer(approver(os.Stdin, os.Stderr)), nil
}

// approver confirms each transaction interactively unless --yes is set.
func approver(in *os.File, out io.Writer) wallet.Approver {
	if assumeYes {
		return wallet.AutoApprove
	}
	if !term.IsTerminal(int(in.Fd())) {
		return func(context.Context, *models.Transaction) (bool, error) {
			return false, errNoTerminal
		}
	}
	return promptApprover(in, out)
}

func promptApprover(in io.Reader, out io.Writer) wallet.Approver {
	reader := bufio.NewReader(in)
	return func(_ context.Context, tx *models.Transaction) (bool, error) {
		fmt.Fprintf(out, "Sign transaction writing %q (%d bytes)? [y/N] ", tx.Key, len(tx.Value))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}
