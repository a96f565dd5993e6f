package chain_test

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/org/creditledger/internal/chain"
	"github.com/org/creditledger/internal/crypto"
	"github.com/org/creditledger/pkg/models"
	"github.com/stretchr/testify/require"
)

type keySigner struct {
	priv    ed25519.PrivateKey
	decline bool
}

func newKeySigner(t *testing.T) *keySigner {
	t.Helper()
	priv, err := crypto.DeriveSigningKey([]byte("chain_test_seed_chain_test_seed!"), crypto.WalletKeyContext)
	require.NoError(t, err)
	return &keySigner{priv: priv}
}

func (s *keySigner) Address() string {
	return crypto.Address(s.priv.Public().(ed25519.PublicKey))
}

func (s *keySigner) SignTx(_ context.Context, tx *models.Transaction) error {
	if s.decline {
		return chain.ErrUserRejected
	}
	crypto.SignTx(s.priv, tx)
	return nil
}
