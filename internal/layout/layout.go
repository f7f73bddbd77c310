// Package layout holds the fixed byte layouts of the program's accounts.
//
// Accounts carry no type tag, so a blob is identified purely by shape:
// an exact size match plus field-level validity. The two layouts differ
// in size, which CheckDisjoint asserts, so at most one decode can succeed.
package layout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pbaille/crowd/internal/domain"
)

const (
	// ContentCapacity is the fixed size of the question text field.
	ContentCapacity = 200

	// QuestionSize = content ‖ author ‖ threshold(u32)
	QuestionSize = ContentCapacity + domain.AddressLength + 4
	// StatsSize = question ‖ answers_count(u64) ‖ average(f64)
	StatsSize = domain.AddressLength + 8 + 8
)

var (
	ErrSize          = errors.New("size mismatch")
	ErrContent       = errors.New("invalid content")
	ErrThreshold     = errors.New("threshold must be positive")
	ErrAverage       = errors.New("invalid average")
	ErrQuestionRef   = errors.New("missing question reference")
	ErrContentLength = fmt.Errorf("content exceeds %d bytes", ContentCapacity)
)

var le = binary.LittleEndian

// EncodeQuestion writes q in the on-chain layout, zero-padding the content.
func EncodeQuestion(q domain.Question) ([]byte, error) {
	if len(q.Content) > ContentCapacity {
		return nil, ErrContentLength
	}
	if strings.IndexByte(q.Content, 0) >= 0 {
		return nil, fmt.Errorf("%w: zero byte in content", ErrContent)
	}
	buf := make([]byte, QuestionSize)
	copy(buf, q.Content)
	copy(buf[ContentCapacity:], q.Author[:])
	le.PutUint32(buf[ContentCapacity+domain.AddressLength:], q.Threshold)
	return buf, nil
}

// DecodeQuestion parses a question account. The address is not part of the data.
func DecodeQuestion(addr domain.Address, data []byte) (domain.Question, error) {
	if len(data) != QuestionSize {
		return domain.Question{}, fmt.Errorf("question: %w: got %d bytes, want %d", ErrSize, len(data), QuestionSize)
	}
	content, err := TrimContent(data[:ContentCapacity])
	if err != nil {
		return domain.Question{}, fmt.Errorf("question: %w", err)
	}
	q := domain.Question{
		Address:   addr,
		Content:   content,
		Threshold: le.Uint32(data[ContentCapacity+domain.AddressLength:]),
	}
	copy(q.Author[:], data[ContentCapacity:ContentCapacity+domain.AddressLength])
	if q.Threshold == 0 {
		return domain.Question{}, fmt.Errorf("question: %w", ErrThreshold)
	}
	return q, nil
}

// TrimContent decodes a zero-padded text field, cutting at the first zero byte.
// Invalid UTF-8 sequences are replaced with U+FFFD rather than rejected.
func TrimContent(field []byte) (string, error) {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	if len(field) == 0 {
		return "", ErrContent
	}
	s := strings.ToValidUTF8(string(field), string(utf8.RuneError))
	if strings.TrimSpace(s) == "" {
		return "", ErrContent
	}
	return s, nil
}

// EncodeStats writes s in the on-chain layout.
func EncodeStats(s domain.QuestionStats) []byte {
	buf := make([]byte, StatsSize)
	copy(buf, s.QuestionAddress[:])
	le.PutUint64(buf[domain.AddressLength:], s.AnswersCount)
	le.PutUint64(buf[domain.AddressLength+8:], math.Float64bits(s.Average))
	return buf
}

// DecodeStats parses a statistics account.
func DecodeStats(addr domain.Address, data []byte) (domain.QuestionStats, error) {
	if len(data) != StatsSize {
		return domain.QuestionStats{}, fmt.Errorf("stats: %w: got %d bytes, want %d", ErrSize, len(data), StatsSize)
	}
	s := domain.QuestionStats{
		Address:      addr,
		AnswersCount: le.Uint64(data[domain.AddressLength:]),
		Average:      math.Float64frombits(le.Uint64(data[domain.AddressLength+8:])),
	}
	copy(s.QuestionAddress[:], data[:domain.AddressLength])

	switch {
	case s.QuestionAddress.IsZero():
		return domain.QuestionStats{}, fmt.Errorf("stats: %w", ErrQuestionRef)
	case !domain.ValidAnswer(s.Average):
		return domain.QuestionStats{}, fmt.Errorf("stats: %w: %v", ErrAverage, s.Average)
	case s.AnswersCount == 0 && s.Average != 0:
		return domain.QuestionStats{}, fmt.Errorf("stats: %w: %v with no answers", ErrAverage, s.Average)
	}
	return s, nil
}

// CheckDisjoint fails if the two layouts could decode the same blob.
func CheckDisjoint() error {
	return disjoint([]shape{
		{name: "question", size: QuestionSize},
		{name: "stats", size: StatsSize},
	})
}

type shape struct {
	name string
	size int
}

func disjoint(shapes []shape) error {
	seen := make(map[int]string, len(shapes))
	for _, s := range shapes {
		if prev, ok := seen[s.size]; ok {
			return fmt.Errorf("layouts %s and %s alias at %d bytes", prev, s.name, s.size)
		}
		seen[s.size] = s.name
	}
	return nil
}
