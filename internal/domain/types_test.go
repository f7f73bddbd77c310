package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestQuestionStats_Apply_RunningAverage(t *testing.T) {
	t.Parallel()

	var s QuestionStats
	_, ok := s.Mean()
	require.False(t, ok, "no average before the first answer")

	want := []struct {
		count uint64
		avg   float64
	}{{1, 4}, {2, 5}, {3, 5}}

	for i, v := range []float64{4, 6, 5} {
		s = s.Apply(v)
		mean, ok := s.Mean()
		require.True(t, ok)
		assert.Equal(t, want[i].count, s.AnswersCount)
		assert.InDelta(t, want[i].avg, mean, 1e-12)
	}
}

func TestQuestionStats_Closed(t *testing.T) {
	t.Parallel()

	s := QuestionStats{AnswersCount: 2}
	assert.False(t, s.Closed(3))
	assert.True(t, s.Apply(1).Closed(3))
}

func TestValidAnswer(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidAnswer(-3.5))
	assert.False(t, ValidAnswer(math.NaN()))
	assert.False(t, ValidAnswer(math.Inf(1)))
}

func TestQuestionStats_MarshalJSON_AbsentAverage(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(QuestionStats{QuestionAddress: Address{1}})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Nil(t, doc["average"])
	assert.EqualValues(t, 0, doc["answers_count"])

	raw, err = json.Marshal(QuestionStats{QuestionAddress: Address{1}, AnswersCount: 1, Average: 2.5})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 2.5, doc["average"])
}

func TestQuestionView_YAMLInlinesQuestion(t *testing.T) {
	t.Parallel()

	v := QuestionView{Question: Question{Content: "Is it raining?", Threshold: 3}}
	raw, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "content: Is it raining?")
	assert.NotContains(t, string(raw), "stats:")
}

func TestAddress_TextRoundTrip(t *testing.T) {
	t.Parallel()

	a := Address{0xde, 0xad, 0xbe, 0xef, 31: 0x01}
	parsed, err := ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseAddress("abc")
	require.Error(t, err)
	_, err = ParseAddress("0OIl")
	require.Error(t, err)

	assert.Equal(t, "11111111111111111111111111111111", Address{}.String())
}

func TestBoundaryError_MatchesKindAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := FetchFailed(cause)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrCreationFailed)

	var be *BoundaryError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, cause, be.Cause)
}
