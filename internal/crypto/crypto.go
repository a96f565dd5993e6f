package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/org/creditledger/pkg/models"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// WalletKeyContext is the HKDF info string used to derive wallet signing keys.
const WalletKeyContext = "creditledger-wallet-v1"

var (
	ErrBadSignature = errors.New("invalid transaction signature")
	ErrAddrMismatch = errors.New("sender address does not match public key")
)

// GenerateSeed generates a 32-byte cryptographically secure random wallet seed.
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("generating seed: %w", err)
	}
	return seed, nil
}

// DeriveSigningKey derives an ed25519 key from the seed using HKDF-SHA256.
func DeriveSigningKey(seed []byte, context string) (ed25519.PrivateKey, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}
	keySeed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, seed, nil, []byte(context))
	if _, err := io.ReadFull(r, keySeed); err != nil {
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}
	return ed25519.NewKeyFromSeed(keySeed), nil
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d) //nolint:errcheck
	}
	return h.Sum(nil)
}

// Address returns the 0x-prefixed account address of a public key:
// the last 20 bytes of its Keccak-256 hash.
func Address(pub ed25519.PublicKey) string {
	sum := Keccak256(pub)
	return "0x" + hex.EncodeToString(sum[12:])
}

// TxDigest is the Keccak-256 of the length-prefixed signed fields of tx.
func TxDigest(tx *models.Transaction) []byte {
	var buf []byte
	for _, f := range [][]byte{
		[]byte(strings.ToLower(tx.From)),
		[]byte(tx.Key),
		tx.Value,
		[]byte(tx.Nonce),
	} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(tx.Timestamp))
	return Keccak256(buf)
}

// SignTx fills in From, PublicKey and Signature for tx.
func SignTx(priv ed25519.PrivateKey, tx *models.Transaction) {
	pub := priv.Public().(ed25519.PublicKey)
	tx.From = Address(pub)
	tx.PublicKey = hex.EncodeToString(pub)
	tx.Signature = hex.EncodeToString(ed25519.Sign(priv, TxDigest(tx)))
}

// VerifyTx checks the sender address and signature of tx.
func VerifyTx(tx *models.Transaction) error {
	pub, err := hex.DecodeString(tx.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: malformed public key", ErrBadSignature)
	}
	if !strings.EqualFold(Address(pub), tx.From) {
		return ErrAddrMismatch
	}
	sig, err := hex.DecodeString(tx.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	if !ed25519.Verify(pub, TxDigest(tx), sig) {
		return ErrBadSignature
	}
	return nil
}

// TxHash identifies a signed transaction.
func TxHash(tx *models.Transaction) string {
	sig, _ := hex.DecodeString(tx.Signature)
	return "0x" + hex.EncodeToString(Keccak256(TxDigest(tx), sig))
}
