package txn

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/pbaille/crowd/internal/domain"
)

// SystemProgram is the ledger's account-creation program.
var SystemProgram = domain.Address{}

// Discriminator is the 8-byte method selector the program dispatches on.
func Discriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// InitializeInstruction builds initialize(question: string, threshold: u32).
func InitializeInstruction(programID domain.Address, p domain.InitializeParams) Instruction {
	d := Discriminator("initialize")
	data := append([]byte(nil), d[:]...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(p.Content)))
	data = append(data, p.Content...)
	data = binary.LittleEndian.AppendUint32(data, p.Threshold)

	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Address: p.Question, Writable: true},
			{Address: p.Stats, Writable: true},
			{Address: p.Owner, Signer: true, Writable: true},
			{Address: SystemProgram},
		},
		Data: data,
	}
}

// SubmitAnswerInstruction builds submit_answer(value: f64).
func SubmitAnswerInstruction(programID domain.Address, p domain.AnswerParams) Instruction {
	d := Discriminator("submit_answer")
	data := append([]byte(nil), d[:]...)
	data = binary.LittleEndian.AppendUint64(data, math.Float64bits(p.Value))

	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Address: p.Question},
			{Address: p.Stats, Writable: true},
			{Address: p.Answerer, Signer: true, Writable: true},
		},
		Data: data,
	}
}
