// Package wallet holds the user's signing identity: a seed on disk from
// which the ed25519 transaction key and the account address are derived.
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/internal/crypto"
	"github.com/org/creditledger/pkg/models"
	"gopkg.in/yaml.v3"
)

const keystoreVersion = 1

var (
	ErrNoWallet      = errors.New("no wallet found")
	ErrWalletExists  = errors.New("wallet already exists")
	ErrCorruptWallet = errors.New("wallet file is corrupt")
)

// keystoreFile is the on-disk layout of wallet.yaml.
type keystoreFile struct {
	Version   int       `yaml:"version"`
	Address   string    `yaml:"address"`
	Seed      string    `yaml:"seed"` // hex
	CreatedAt time.Time `yaml:"created_at"`
}

// Wallet is a loaded keystore.
type Wallet struct {
	Path      string
	Address   string
	CreatedAt time.Time
	key       ed25519.PrivateKey
}

// DefaultPath returns ~/.creditledger/wallet.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".creditledger", "wallet.yaml")
}

// Create generates a new seed and writes it to path with mode 0600.
// An existing wallet is only replaced when force is set.
func Create(path string, force bool) (*Wallet, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return nil, fmt.Errorf("%w at %s", ErrWalletExists, path)
	}
	seed, err := crypto.GenerateSeed()
	if err != nil {
		return nil, err
	}
	w, err := fromSeed(path, seed, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(&keystoreFile{
		Version:   keystoreVersion,
		Address:   w.Address,
		Seed:      hex.EncodeToString(seed),
		CreatedAt: w.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	// Write then rename so watchers never observe a half-written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return nil, err
	}
	return w, nil
}

// Load reads the wallet at path.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoWallet, path)
	}
	if err != nil {
		return nil, err
	}
	var f keystoreFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWallet, err)
	}
	if f.Version != keystoreVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptWallet, f.Version)
	}
	seed, err := hex.DecodeString(f.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %v", ErrCorruptWallet, err)
	}
	w, err := fromSeed(path, seed, f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWallet, err)
	}
	if f.Address != "" && !strings.EqualFold(f.Address, w.Address) {
		return nil, fmt.Errorf("%w: address does not match seed", ErrCorruptWallet)
	}
	return w, nil
}

func fromSeed(path string, seed []byte, createdAt time.Time) (*Wallet, error) {
	key, err := crypto.DeriveSigningKey(seed, crypto.WalletKeyContext)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		Path:      path,
		Address:   crypto.Address(key.Public().(ed25519.PublicKey)),
		CreatedAt: createdAt,
		key:       key,
	}, nil
}

// Approver decides whether a transaction may be signed.
type Approver func(ctx context.Context, tx *models.Transaction) (bool, error)

// AutoApprove signs everything.
func AutoApprove(context.Context, *models.Transaction) (bool, error) { return true, nil }

// Signer is the wallet's write capability.
type Signer struct {
	wallet  *Wallet
	approve Approver
}

// Signer returns a chain.Signer for w. A nil approver approves everything.
func (w *Wallet) Signer(approve Approver) *Signer {
	if approve == nil {
		approve = AutoApprove
	}
	return &Signer{wallet: w, approve: approve}
}

var _ chain.Signer = (*Signer)(nil)

func (s *Signer) Address() string { return s.wallet.Address }

// SignTx asks the approver, then signs tx. Declining yields
// chain.ErrUserRejected.
func (s *Signer) SignTx(ctx context.Context, tx *models.Transaction) error {
	ok, err := s.approve(ctx, tx)
	if err != nil {
		return err
	}
	if !ok {
		return chain.ErrUserRejected
	}
	crypto.SignTx(s.wallet.key, tx)
	return nil
}
