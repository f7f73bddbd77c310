package domain

import (
	"fmt"

	"github.com/mr-tron/base58/base58"
)

// AddressLength is the size of a ledger address in bytes.
const AddressLength = 32

// Address identifies an account or program on the ledger
type Address [AddressLength]byte

// ParseAddress decodes a base58 address
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("decode address %q: got %d bytes, want %d", s, len(raw), AddressLength)
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants; it panics on bad input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies b into an Address
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("address: got %d bytes, want %d", len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether the address is unset
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the address bytes
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
