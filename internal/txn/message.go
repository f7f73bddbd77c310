// Package txn encodes and signs ledger transactions in the legacy wire format.
package txn

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/pbaille/crowd/internal/domain"
)

// AccountMeta describes how an instruction uses an account
type AccountMeta struct {
	Address  domain.Address
	Signer   bool
	Writable bool
}

// Instruction is one program invocation inside a transaction
type Instruction struct {
	ProgramID domain.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Signer signs transaction messages
type Signer interface {
	Address() domain.Address
	Sign(message []byte) []byte
}

// Message is a compiled, unsigned transaction body
type Message struct {
	NumSigners          uint8
	NumReadonlySigners  uint8
	NumReadonlyUnsigned uint8
	Accounts            []domain.Address
	Blockhash           domain.Address
	Instructions        []compiledInstruction
}

type compiledInstruction struct {
	programIndex uint8
	accounts     []uint8
	data         []byte
}

var ErrTooManyAccounts = errors.New("transaction references more than 256 accounts")

// Compile orders accounts the way the runtime expects them: the fee payer
// first, then writable signers, readonly signers, writable and finally
// readonly non-signers, each group in first-seen order.
func Compile(payer domain.Address, blockhash domain.Address, instructions ...Instruction) (Message, error) {
	type entry struct {
		meta  AccountMeta
		order int
	}
	seen := map[domain.Address]*entry{}
	var order []domain.Address
	add := func(m AccountMeta) {
		if e, ok := seen[m.Address]; ok {
			e.meta.Signer = e.meta.Signer || m.Signer
			e.meta.Writable = e.meta.Writable || m.Writable
			return
		}
		seen[m.Address] = &entry{meta: m, order: len(order)}
		order = append(order, m.Address)
	}

	add(AccountMeta{Address: payer, Signer: true, Writable: true})
	for _, ix := range instructions {
		for _, m := range ix.Accounts {
			add(m)
		}
		add(AccountMeta{Address: ix.ProgramID})
	}
	if len(order) > 256 {
		return Message{}, ErrTooManyAccounts
	}

	var groups [4][]domain.Address
	for _, addr := range order {
		m := seen[addr].meta
		switch {
		case m.Signer && m.Writable:
			groups[0] = append(groups[0], addr)
		case m.Signer:
			groups[1] = append(groups[1], addr)
		case m.Writable:
			groups[2] = append(groups[2], addr)
		default:
			groups[3] = append(groups[3], addr)
		}
	}

	msg := Message{
		NumSigners:          uint8(len(groups[0]) + len(groups[1])),
		NumReadonlySigners:  uint8(len(groups[1])),
		NumReadonlyUnsigned: uint8(len(groups[3])),
		Blockhash:           blockhash,
	}
	index := make(map[domain.Address]uint8, len(order))
	for _, g := range groups {
		for _, addr := range g {
			index[addr] = uint8(len(msg.Accounts))
			msg.Accounts = append(msg.Accounts, addr)
		}
	}

	for _, ix := range instructions {
		ci := compiledInstruction{programIndex: index[ix.ProgramID], data: ix.Data}
		for _, m := range ix.Accounts {
			ci.accounts = append(ci.accounts, index[m.Address])
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg, nil
}

// Serialize returns the message bytes that signers sign.
func (m Message) Serialize() []byte {
	buf := []byte{m.NumSigners, m.NumReadonlySigners, m.NumReadonlyUnsigned}
	buf = appendCompactU16(buf, len(m.Accounts))
	for _, a := range m.Accounts {
		buf = append(buf, a[:]...)
	}
	buf = append(buf, m.Blockhash[:]...)
	buf = appendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.programIndex)
		buf = appendCompactU16(buf, len(ix.accounts))
		buf = append(buf, ix.accounts...)
		buf = appendCompactU16(buf, len(ix.data))
		buf = append(buf, ix.data...)
	}
	return buf
}

// Sign returns the wire transaction: signatures followed by the message.
// signers must cover every required signer, in any order.
func Sign(m Message, signers ...Signer) ([]byte, error) {
	body := m.Serialize()
	bySigner := make(map[domain.Address]Signer, len(signers))
	for _, s := range signers {
		bySigner[s.Address()] = s
	}

	out := appendCompactU16(nil, int(m.NumSigners))
	for i := 0; i < int(m.NumSigners); i++ {
		s, ok := bySigner[m.Accounts[i]]
		if !ok {
			return nil, fmt.Errorf("missing signer %s", m.Accounts[i])
		}
		sig := s.Sign(body)
		if len(sig) != ed25519.SignatureSize {
			return nil, fmt.Errorf("signer %s returned %d-byte signature", m.Accounts[i], len(sig))
		}
		out = append(out, sig...)
	}
	return append(out, body...), nil
}

func appendCompactU16(b []byte, n int) []byte {
	for {
		elem := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}
