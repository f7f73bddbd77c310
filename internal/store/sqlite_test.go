package store_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/pda"
	"github.com/pbaille/crowd/internal/session"
	"github.com/pbaille/crowd/internal/store"
)

var (
	testProgram = domain.Address{0x0b, 0xad, 0xc0, 0xde, 9}
	alice       = domain.Address{0xa1, 0x1c, 0xe}
	bob         = domain.Address{0xb0, 0xb}
)

// newStore is a test helper that opens a fresh database in a temp dir.
func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), testProgram)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newSession(t *testing.T, ledger session.Ledger, owner domain.Address) *session.Controller {
	t.Helper()
	c, err := session.New(ledger, testProgram, owner,
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func initParams(t *testing.T, content string, owner domain.Address, threshold uint32) domain.InitializeParams {
	t.Helper()
	pair, err := pda.DerivePair(content, owner, testProgram)
	require.NoError(t, err)
	return domain.InitializeParams{
		Question:  pair.Question,
		Stats:     pair.Stats,
		Owner:     owner,
		Content:   content,
		Threshold: threshold,
	}
}

func TestEndToEnd_CreateThenList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newSession(t, newStore(t), alice)

	created, err := c.CreateQuestion(ctx, "Is it raining?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, created.Receipt.Signature)

	views, err := c.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, created.Question, v.Address)
	assert.Equal(t, "Is it raining?", v.Content)
	assert.Equal(t, uint32(3), v.Threshold)
	assert.Equal(t, alice, v.Author)
	require.NotNil(t, v.Stats)
	assert.Equal(t, created.Stats, v.Stats.Address)
	assert.Zero(t, v.Stats.AnswersCount)
	_, ok := v.Stats.Mean()
	assert.False(t, ok, "average is absent before any answer")
}

func TestEndToEnd_AnswersFoldIntoAverage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger := newStore(t)
	owner := newSession(t, ledger, alice)

	created, err := owner.CreateQuestion(ctx, "How many umbrellas?", 3)
	require.NoError(t, err)

	answerers := []domain.Address{alice, bob, {0xca, 0x7}}
	want := []struct {
		count uint64
		avg   float64
	}{{1, 4}, {2, 5}, {3, 5}}

	for i, v := range []float64{4, 6, 5} {
		c := newSession(t, ledger, answerers[i])
		_, err := c.SubmitAnswer(ctx, created.Question, v)
		require.NoError(t, err)

		applied, err := c.Refresh(ctx)
		require.NoError(t, err)
		require.True(t, applied)

		snap := c.Snapshot()
		require.Len(t, snap.Questions, 1)
		stats := snap.Questions[0].Stats
		require.NotNil(t, stats)
		mean, ok := stats.Mean()
		require.True(t, ok)
		assert.Equal(t, want[i].count, stats.AnswersCount)
		assert.InDelta(t, want[i].avg, mean, 1e-12)
	}

	_, err = newSession(t, ledger, domain.Address{0xd}).SubmitAnswer(ctx, created.Question, 1)
	require.ErrorIs(t, err, domain.ErrSubmissionRejected)
	require.ErrorIs(t, err, store.ErrQuestionClosed)
}

func TestStore_InitializeQuestion_Duplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newSession(t, newStore(t), alice)

	_, err := c.CreateQuestion(ctx, "Is it raining?", 3)
	require.NoError(t, err)

	_, err = c.CreateQuestion(ctx, "Is it raining?", 5)
	require.ErrorIs(t, err, domain.ErrCreationFailed)
	require.ErrorIs(t, err, domain.ErrAccountExists)

	views, err := c.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint32(3), views[0].Threshold)
}

func TestStore_InitializeQuestion_SameTextDifferentOwners(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger := newStore(t)

	_, err := newSession(t, ledger, alice).CreateQuestion(ctx, "Is it raining?", 3)
	require.NoError(t, err)
	_, err = newSession(t, ledger, bob).CreateQuestion(ctx, "Is it raining?", 3)
	require.NoError(t, err)

	accounts, err := ledger.FetchAllAccounts(ctx, testProgram)
	require.NoError(t, err)
	assert.Len(t, accounts, 4)
}

func TestStore_InitializeQuestion_RejectsForgedAddresses(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	p := initParams(t, "Is it raining?", alice, 3)
	p.Stats = domain.Address{0xff}

	_, err := s.InitializeQuestion(context.Background(), p)
	require.ErrorIs(t, err, store.ErrSeedsMismatch)

	p = initParams(t, "Is it raining?", alice, 3)
	p.Owner = bob
	_, err = s.InitializeQuestion(context.Background(), p)
	require.ErrorIs(t, err, store.ErrSeedsMismatch)
}

func TestStore_SubmitAnswer_Rules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	p := initParams(t, "Pick a number", alice, 5)
	_, err := s.InitializeQuestion(ctx, p)
	require.NoError(t, err)

	answer := domain.AnswerParams{Question: p.Question, Stats: p.Stats, Answerer: bob, Value: 7}
	_, err = s.SubmitAnswer(ctx, answer)
	require.NoError(t, err)

	_, err = s.SubmitAnswer(ctx, answer)
	require.ErrorIs(t, err, store.ErrDuplicateAnswer)

	forged := answer
	forged.Stats = p.Question
	_, err = s.SubmitAnswer(ctx, forged)
	require.ErrorIs(t, err, store.ErrSeedsMismatch)

	unknown := initParams(t, "Never created", alice, 1)
	_, err = s.SubmitAnswer(ctx, domain.AnswerParams{Question: unknown.Question, Stats: unknown.Stats, Answerer: bob, Value: 1})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestStore_FetchAllAccounts_FiltersByProgram(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	_, err := s.InitializeQuestion(ctx, initParams(t, "Is it raining?", alice, 3))
	require.NoError(t, err)

	accounts, err := s.FetchAllAccounts(ctx, domain.Address{1})
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestStore_ReopenKeepsAccounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := store.New(ctx, path, testProgram)
	require.NoError(t, err)
	_, err = s.InitializeQuestion(ctx, initParams(t, "Still there?", alice, 2))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.New(ctx, path, testProgram)
	require.NoError(t, err)
	defer s.Close()

	accounts, err := s.FetchAllAccounts(ctx, testProgram)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}
