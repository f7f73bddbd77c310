package layout

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/crowd/internal/domain"
)

var (
	qAddr  = domain.Address{1}
	sAddr  = domain.Address{2}
	author = domain.Address{3, 3, 3}
)

func TestQuestion_TextRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := EncodeQuestion(domain.Question{Content: "Hello", Author: author, Threshold: 3})
	require.NoError(t, err)
	require.Len(t, data, QuestionSize)
	assert.Zero(t, data[len("Hello")], "content must be zero padded")

	q, err := DecodeQuestion(qAddr, data)
	require.NoError(t, err)
	assert.Equal(t, "Hello", q.Content)
	assert.Equal(t, author, q.Author)
	assert.Equal(t, uint32(3), q.Threshold)
	assert.Equal(t, qAddr, q.Address)
}

func TestQuestion_FullCapacityContent(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("é", ContentCapacity/2)
	data, err := EncodeQuestion(domain.Question{Content: content, Author: author, Threshold: 1})
	require.NoError(t, err)

	q, err := DecodeQuestion(qAddr, data)
	require.NoError(t, err)
	assert.Equal(t, content, q.Content)
}

func TestEncodeQuestion_Rejects(t *testing.T) {
	t.Parallel()

	_, err := EncodeQuestion(domain.Question{Content: strings.Repeat("a", ContentCapacity+1), Threshold: 1})
	require.ErrorIs(t, err, ErrContentLength)

	_, err = EncodeQuestion(domain.Question{Content: "a\x00b", Threshold: 1})
	require.ErrorIs(t, err, ErrContent)
}

func TestDecodeQuestion_Rejects(t *testing.T) {
	t.Parallel()

	valid, err := EncodeQuestion(domain.Question{Content: "ok?", Author: author, Threshold: 2})
	require.NoError(t, err)

	blank := append([]byte(nil), valid...)
	copy(blank, "   ")

	zeroThreshold := append([]byte(nil), valid...)
	copy(zeroThreshold[ContentCapacity+domain.AddressLength:], []byte{0, 0, 0, 0})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "short", data: valid[:QuestionSize-1], want: ErrSize},
		{name: "stats sized", data: make([]byte, StatsSize), want: ErrSize},
		{name: "empty content", data: make([]byte, QuestionSize), want: ErrContent},
		{name: "blank content", data: blank, want: ErrContent},
		{name: "zero threshold", data: zeroThreshold, want: ErrThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeQuestion(qAddr, tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeQuestion_InvalidUTF8IsReplaced(t *testing.T) {
	t.Parallel()

	// Text cut mid-character at the field's capacity.
	full := strings.Repeat("a", ContentCapacity-1) + "é"
	data := make([]byte, QuestionSize)
	copy(data, full[:ContentCapacity])
	copy(data[ContentCapacity:], author[:])
	data[ContentCapacity+domain.AddressLength] = 3

	q, err := DecodeQuestion(qAddr, data)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", ContentCapacity-1)+"\uFFFD", q.Content)
	assert.Equal(t, uint32(3), q.Threshold)

	bad := append([]byte(nil), data...)
	bad[0] = 0xff
	q, err = DecodeQuestion(qAddr, bad)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(q.Content, "\uFFFD"))
}

func TestStats_RoundTrip(t *testing.T) {
	t.Parallel()

	in := domain.QuestionStats{QuestionAddress: qAddr, AnswersCount: 2, Average: 5.5}
	out, err := DecodeStats(sAddr, EncodeStats(in))
	require.NoError(t, err)

	in.Address = sAddr
	assert.Equal(t, in, out)
}

func TestDecodeStats_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stats domain.QuestionStats
		want  error
	}{
		{name: "no question", stats: domain.QuestionStats{AnswersCount: 1, Average: 1}, want: ErrQuestionRef},
		{name: "nan average", stats: domain.QuestionStats{QuestionAddress: qAddr, AnswersCount: 1, Average: math.NaN()}, want: ErrAverage},
		{name: "average without answers", stats: domain.QuestionStats{QuestionAddress: qAddr, Average: 4}, want: ErrAverage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStats(sAddr, EncodeStats(tt.stats))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := DecodeStats(sAddr, make([]byte, QuestionSize))
	require.ErrorIs(t, err, ErrSize)
}

func TestCheckDisjoint(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckDisjoint())

	err := disjoint([]shape{{name: "a", size: 48}, {name: "b", size: 12}, {name: "c", size: 48}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a and c")
}
