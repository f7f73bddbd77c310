// Package pda derives program addresses: deterministic ledger addresses
// computed from seed bytes and a program id that no private key controls.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/pbaille/crowd/internal/domain"
)

const (
	// MaxSeeds is the most seed components a derivation accepts, bump included.
	MaxSeeds = 16
	// MaxSeedLength is the longest single seed component in bytes.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	// ErrOnCurve means the candidate is a valid ed25519 key and cannot be a program address.
	ErrOnCurve = errors.New("address is on the ed25519 curve")
	// ErrNoViableBump means no bump in [0, 255] produced an off-curve address.
	ErrNoViableBump = errors.New("no viable bump seed")
)

// Derive finds the program address for seeds, trying bumps from 255 down
// and returning the first candidate that lies off the ed25519 curve.
func Derive(seeds [][]byte, programID domain.Address) (domain.Address, uint8, error) {
	if err := validate(seeds, programID, 1); err != nil {
		return domain.Address{}, 0, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = byte(b)
		addr := hashSeeds(withBump, programID)
		if !onCurve(addr) {
			return addr, uint8(b), nil
		}
	}
	return domain.Address{}, 0, ErrNoViableBump
}

// CreateAddress hashes seeds as given, with the bump already appended by the caller.
func CreateAddress(seeds [][]byte, programID domain.Address) (domain.Address, error) {
	if err := validate(seeds, programID, 0); err != nil {
		return domain.Address{}, err
	}
	addr := hashSeeds(seeds, programID)
	if onCurve(addr) {
		return domain.Address{}, ErrOnCurve
	}
	return addr, nil
}

func validate(seeds [][]byte, programID domain.Address, reserved int) error {
	if len(seeds) == 0 {
		return fmt.Errorf("%w: empty seed list", domain.ErrInvalidSeed)
	}
	if len(seeds)+reserved > MaxSeeds {
		return fmt.Errorf("%w: %d seeds, max %d", domain.ErrInvalidSeed, len(seeds), MaxSeeds-reserved)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes, max %d", domain.ErrInvalidSeed, i, len(s), MaxSeedLength)
		}
	}
	if programID.IsZero() {
		return fmt.Errorf("%w: empty program id", domain.ErrInvalidSeed)
	}
	return nil
}

func hashSeeds(seeds [][]byte, programID domain.Address) domain.Address {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out domain.Address
	copy(out[:], h.Sum(nil))
	return out
}

// onCurve accepts non-canonical encodings, like the ledger's own check.
func onCurve(a domain.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
