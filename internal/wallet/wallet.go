// Package wallet loads the owner keypair that signs ledger transactions.
package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/pbaille/crowd/internal/domain"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidKeypair  = errors.New("invalid keypair")
	ErrInvalidPath     = errors.New("invalid derivation path")
)

// Wallet holds an ed25519 keypair
type Wallet struct {
	key ed25519.PrivateKey
}

// FromPrivateKey wraps an existing ed25519 key.
func FromPrivateKey(key ed25519.PrivateKey) (*Wallet, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeypair, len(key), ed25519.PrivateKeySize)
	}
	return &Wallet{key: key}, nil
}

// LoadKeypair reads a keypair file: a JSON array of the 64 secret key bytes.
func LoadKeypair(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeypair, len(ints), ed25519.PrivateKeySize)
	}
	key := make([]byte, ed25519.PrivateKeySize)
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
		}
		key[i] = byte(v)
	}

	// The second half must be the public key of the first.
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !derived.Equal(ed25519.PrivateKey(key)) {
		return nil, fmt.Errorf("%w: public half does not match secret", ErrInvalidKeypair)
	}
	return &Wallet{key: derived}, nil
}

// SaveKeypair writes the wallet in keypair-file format with owner-only permissions.
func (w *Wallet) SaveKeypair(path string) error {
	ints := make([]int, len(w.key))
	for i, b := range w.key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	return nil
}

// FromMnemonic derives a wallet from a BIP-39 phrase. With an empty path the
// first 32 bytes of the seed are the key; otherwise path is a hardened
// SLIP-0010 path such as m/44'/501'/0'/0'.
func FromMnemonic(mnemonic, passphrase, path string) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)

	if strings.TrimSpace(path) == "" {
		return &Wallet{key: ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])}, nil
	}

	indexes, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	return &Wallet{key: ed25519.NewKeyFromSeed(deriveSLIP10(seed, indexes))}, nil
}

// Generate creates a new 24-word mnemonic and the wallet it derives.
func Generate(passphrase, path string) (string, *Wallet, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", nil, fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, fmt.Errorf("mnemonic: %w", err)
	}
	w, err := FromMnemonic(mnemonic, passphrase, path)
	if err != nil {
		return "", nil, err
	}
	return mnemonic, w, nil
}

// Address is the wallet's public key
func (w *Wallet) Address() domain.Address {
	var a domain.Address
	copy(a[:], w.key.Public().(ed25519.PublicKey))
	return a
}

// Sign signs message with the wallet key
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.key, message)
}

const hardened = uint32(1) << 31

func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) < 2 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	indexes := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		// ed25519 only supports hardened children
		p = strings.TrimSuffix(p, "'")
		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
		}
		indexes = append(indexes, uint32(n)|hardened)
	}
	return indexes, nil
}

func deriveSLIP10(seed []byte, indexes []uint32) []byte {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chain := sum[:32], sum[32:]

	for _, idx := range indexes {
		data := make([]byte, 0, 1+32+4)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, idx)

		mac := hmac.New(sha512.New, chain)
		mac.Write(data)
		sum := mac.Sum(nil)
		key, chain = sum[:32], sum[32:]
	}
	return key
}
