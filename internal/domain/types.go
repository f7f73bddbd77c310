package domain

import (
	"encoding/json"
	"math"
)

// Kind identifies which account layout a fetched blob decoded as
type Kind int

const (
	KindUnknown Kind = iota
	KindQuestion
	KindQuestionStats
)

func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindQuestionStats:
		return "question_stats"
	default:
		return "unknown"
	}
}

// Question represents a posed question stored on the ledger
type Question struct {
	Address   Address `json:"address" yaml:"address"`
	Content   string  `json:"content" yaml:"content"`
	Author    Address `json:"author" yaml:"author"`
	Threshold uint32  `json:"threshold" yaml:"threshold"`
}

// QuestionStats holds the running aggregate of answers to one Question
type QuestionStats struct {
	Address         Address `json:"address" yaml:"address"`
	QuestionAddress Address `json:"question_address" yaml:"question_address"`
	AnswersCount    uint64  `json:"answers_count" yaml:"answers_count"`
	Average         float64 `json:"-" yaml:"-"`
}

// Mean returns the running average, which only exists once an answer was accepted.
func (s QuestionStats) Mean() (float64, bool) {
	if s.AnswersCount == 0 {
		return 0, false
	}
	return s.Average, true
}

// Apply folds one answer into the aggregate.
// The ledger owns this update; clients only read its result.
func (s QuestionStats) Apply(value float64) QuestionStats {
	next := s
	next.AnswersCount = s.AnswersCount + 1
	next.Average = s.Average + (value-s.Average)/float64(next.AnswersCount)
	return next
}

// Closed reports whether the question has received as many answers as its threshold.
func (s QuestionStats) Closed(threshold uint32) bool {
	return s.AnswersCount >= uint64(threshold)
}

type statsDoc struct {
	Address         Address  `json:"address" yaml:"address"`
	QuestionAddress Address  `json:"question_address" yaml:"question_address"`
	AnswersCount    uint64   `json:"answers_count" yaml:"answers_count"`
	Average         *float64 `json:"average" yaml:"average"`
}

func (s QuestionStats) doc() statsDoc {
	d := statsDoc{
		Address:         s.Address,
		QuestionAddress: s.QuestionAddress,
		AnswersCount:    s.AnswersCount,
	}
	if mean, ok := s.Mean(); ok {
		d.Average = &mean
	}
	return d
}

// MarshalJSON renders the average as null until an answer exists.
func (s QuestionStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.doc())
}

func (s QuestionStats) MarshalYAML() (any, error) {
	return s.doc(), nil
}

// ValidAnswer reports whether value can be folded into an average.
func ValidAnswer(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

// RawAccount is an opaque account fetched from the ledger
type RawAccount struct {
	Address Address
	Data    []byte
}

// ClassifiedAccount is a fetched account tagged with its resolved layout.
// Exactly one of Question and Stats is set unless Kind is KindUnknown.
type ClassifiedAccount struct {
	Kind     Kind
	Address  Address
	Question *Question
	Stats    *QuestionStats
	Err      error
}

// QuestionView is a Question with its statistics attached when they were found
type QuestionView struct {
	Question `yaml:",inline"`
	Stats    *QuestionStats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Receipt acknowledges a boundary call accepted by the ledger
type Receipt struct {
	Signature string `json:"signature" yaml:"signature"`
}
