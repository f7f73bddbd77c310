package pda

import (
	"crypto/sha256"
	"fmt"

	"github.com/pbaille/crowd/internal/domain"
)

// Seed tags agreed with the on-chain program. UTF-8, no terminator.
const (
	QuestionSeed      = "QUESTION_SEED"
	QuestionStatsSeed = "QUESTION_STATS_SEED"
)

// ContentHash is the seed standing in for unbounded question text.
func ContentHash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}

// QuestionSeeds returns [sha256(content), QUESTION_SEED, owner].
func QuestionSeeds(content string, owner domain.Address) [][]byte {
	h := ContentHash(content)
	return [][]byte{h[:], []byte(QuestionSeed), owner.Bytes()}
}

// StatsSeeds returns [QUESTION_STATS_SEED, question].
func StatsSeeds(question domain.Address) [][]byte {
	return [][]byte{[]byte(QuestionStatsSeed), question.Bytes()}
}

// QuestionAddress derives the address of the question owner asked with content.
func QuestionAddress(content string, owner, programID domain.Address) (domain.Address, uint8, error) {
	if owner.IsZero() {
		return domain.Address{}, 0, fmt.Errorf("%w: empty owner", domain.ErrInvalidSeed)
	}
	return Derive(QuestionSeeds(content, owner), programID)
}

// StatsAddress derives the statistics address belonging to question.
func StatsAddress(question, programID domain.Address) (domain.Address, uint8, error) {
	if question.IsZero() {
		return domain.Address{}, 0, fmt.Errorf("%w: empty question address", domain.ErrInvalidSeed)
	}
	return Derive(StatsSeeds(question), programID)
}

// Pair holds both addresses created together by one initialize call
type Pair struct {
	Question     domain.Address `json:"question" yaml:"question"`
	QuestionBump uint8          `json:"question_bump" yaml:"question_bump"`
	Stats        domain.Address `json:"stats" yaml:"stats"`
	StatsBump    uint8          `json:"stats_bump" yaml:"stats_bump"`
}

// DerivePair derives the question address and, from it, the stats address.
func DerivePair(content string, owner, programID domain.Address) (Pair, error) {
	q, qb, err := QuestionAddress(content, owner, programID)
	if err != nil {
		return Pair{}, fmt.Errorf("derive question address: %w", err)
	}
	s, sb, err := StatsAddress(q, programID)
	if err != nil {
		return Pair{}, fmt.Errorf("derive stats address: %w", err)
	}
	return Pair{Question: q, QuestionBump: qb, Stats: s, StatsBump: sb}, nil
}
