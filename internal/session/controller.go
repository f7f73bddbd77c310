// Package session drives the ledger boundary for one client session:
// creating questions, listing them with their statistics, and submitting
// answers. It keeps the most recently applied listing as a snapshot.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pbaille/crowd/internal/classifier"
	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/layout"
	"github.com/pbaille/crowd/internal/metrics"
	"github.com/pbaille/crowd/internal/pda"
)

// Ledger is the external program boundary. Each call is a single attempt.
type Ledger interface {
	InitializeQuestion(ctx context.Context, p domain.InitializeParams) (domain.Receipt, error)
	FetchAllAccounts(ctx context.Context, programID domain.Address) ([]domain.RawAccount, error)
	SubmitAnswer(ctx context.Context, p domain.AnswerParams) (domain.Receipt, error)
}

// Created is the result of a successful CreateQuestion
type Created struct {
	pda.Pair `yaml:",inline"`
	Receipt  domain.Receipt `json:"receipt" yaml:"receipt"`
}

// Snapshot is the listing currently presented to the user
type Snapshot struct {
	Seq       uint64                `json:"seq" yaml:"seq"`
	FetchedAt time.Time             `json:"fetched_at" yaml:"fetched_at"`
	Questions []domain.QuestionView `json:"questions" yaml:"questions"`
}

// Controller is safe for concurrent use.
type Controller struct {
	ledger     Ledger
	classifier *classifier.Classifier
	programID  domain.Address
	owner      domain.Address
	log        *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu       sync.Mutex
	issued   uint64
	snapshot Snapshot
	closed   bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. owner may be zero for a read-only session;
// write operations then fail with domain.ErrUnauthenticated.
func New(ledger Ledger, programID, owner domain.Address, opts ...Option) (*Controller, error) {
	if ledger == nil {
		return nil, fmt.Errorf("session: nil ledger")
	}
	if programID.IsZero() {
		return nil, fmt.Errorf("session: %w: empty program id", domain.ErrInvalidSeed)
	}
	clf, err := classifier.New()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	c := &Controller{
		ledger:     ledger,
		classifier: clf,
		programID:  programID,
		owner:      owner,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Owner returns the session's owner identity
func (c *Controller) Owner() domain.Address {
	return c.owner
}

// ProgramID returns the program whose accounts this session manages
func (c *Controller) ProgramID() domain.Address {
	return c.programID
}

// CreateQuestion derives the question and stats addresses and asks the
// ledger to initialize both. The snapshot is left untouched either way;
// callers refresh to see the new question.
func (c *Controller) CreateQuestion(ctx context.Context, content string, threshold uint32) (Created, error) {
	if err := c.checkOpen(); err != nil {
		return Created{}, err
	}
	if err := ValidateQuestion(content, threshold); err != nil {
		return Created{}, err
	}
	if c.owner.IsZero() {
		return Created{}, domain.ErrUnauthenticated
	}

	pair, err := pda.DerivePair(content, c.owner, c.programID)
	if err != nil {
		return Created{}, err
	}

	start := time.Now()
	receipt, err := c.ledger.InitializeQuestion(ctx, domain.InitializeParams{
		Question:  pair.Question,
		Stats:     pair.Stats,
		Owner:     c.owner,
		Content:   content,
		Threshold: threshold,
	})
	c.metrics.ObserveCall("initialize", start, err)
	if err != nil {
		c.log.WarnContext(ctx, "initialize question failed",
			slog.String("question", pair.Question.String()),
			slog.String("error", err.Error()))
		return Created{}, domain.CreationFailed(err)
	}

	c.log.InfoContext(ctx, "question created",
		slog.String("question", pair.Question.String()),
		slog.String("stats", pair.Stats.String()),
		slog.String("signature", receipt.Signature))
	return Created{Pair: pair, Receipt: receipt}, nil
}

// ValidateQuestion checks the local preconditions of CreateQuestion.
func ValidateQuestion(content string, threshold uint32) error {
	switch {
	case strings.TrimSpace(content) == "":
		return fmt.Errorf("%w: content is required", domain.ErrInvalidQuestion)
	case len(content) > layout.ContentCapacity:
		return fmt.Errorf("%w: content is %d bytes, max %d", domain.ErrInvalidQuestion, len(content), layout.ContentCapacity)
	case strings.ContainsRune(content, 0):
		return fmt.Errorf("%w: content contains a zero byte", domain.ErrInvalidQuestion)
	case threshold == 0:
		return fmt.Errorf("%w: threshold must be positive", domain.ErrInvalidQuestion)
	}
	return nil
}

// ListQuestions fetches every program account, classifies them and returns
// the questions with their statistics attached. It does not touch the snapshot.
func (c *Controller) ListQuestions(ctx context.Context) ([]domain.QuestionView, error) {
	classified, err := c.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return classifier.Aggregate(classified), nil
}

// ListAccounts fetches and classifies every program account, unknown ones included.
func (c *Controller) ListAccounts(ctx context.Context) ([]domain.ClassifiedAccount, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := c.ledger.FetchAllAccounts(ctx, c.programID)
	c.metrics.ObserveCall("fetch", start, err)
	if err != nil {
		c.log.WarnContext(ctx, "fetch accounts failed", slog.String("error", err.Error()))
		return nil, domain.FetchFailed(err)
	}

	classified := c.classifier.Classify(raw)
	for _, ca := range classified {
		c.metrics.ObserveClassified(ca.Kind)
		if ca.Kind == domain.KindUnknown {
			c.log.DebugContext(ctx, "unclassified account",
				slog.String("address", ca.Address.String()),
				slog.String("reason", ca.Err.Error()))
		}
	}

	sum := classifier.Summarize(classified)
	c.log.DebugContext(ctx, "accounts classified",
		slog.Int("questions", sum.Questions),
		slog.Int("stats", sum.Stats),
		slog.Int("unknown", sum.Unknown))
	return classified, nil
}

// Refresh lists questions and replaces the snapshot with the result, unless
// a refresh issued later has already been applied, the session was closed,
// or ctx ended while the fetch was in flight. It reports whether the result
// was applied. On error the snapshot is kept as it was.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, domain.ErrSessionClosed
	}
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	views, err := c.ListQuestions(ctx)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		c.metrics.ObserveDiscarded()
		return false, domain.ErrSessionClosed
	case ctx.Err() != nil:
		c.metrics.ObserveDiscarded()
		return false, ctx.Err()
	case seq <= c.snapshot.Seq:
		c.metrics.ObserveDiscarded()
		c.log.DebugContext(ctx, "discarding superseded listing",
			slog.Uint64("seq", seq),
			slog.Uint64("applied", c.snapshot.Seq))
		return false, nil
	}

	c.snapshot = Snapshot{Seq: seq, FetchedAt: c.now(), Questions: views}
	return true, nil
}

// Snapshot returns the most recently applied listing.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// SubmitAnswer sends value for the question at questionAddress. The ledger
// folds it into the running average; nothing is computed locally, so the
// new average is visible only after a refresh.
func (c *Controller) SubmitAnswer(ctx context.Context, questionAddress domain.Address, value float64) (domain.Receipt, error) {
	if err := c.checkOpen(); err != nil {
		return domain.Receipt{}, err
	}
	if !domain.ValidAnswer(value) {
		return domain.Receipt{}, fmt.Errorf("%w: %v is not a finite number", domain.ErrInvalidAnswer, value)
	}
	if c.owner.IsZero() {
		return domain.Receipt{}, domain.ErrUnauthenticated
	}

	stats, _, err := pda.StatsAddress(questionAddress, c.programID)
	if err != nil {
		return domain.Receipt{}, err
	}

	start := time.Now()
	receipt, err := c.ledger.SubmitAnswer(ctx, domain.AnswerParams{
		Question: questionAddress,
		Stats:    stats,
		Answerer: c.owner,
		Value:    value,
	})
	c.metrics.ObserveCall("submit_answer", start, err)
	if err != nil {
		c.log.WarnContext(ctx, "submit answer failed",
			slog.String("question", questionAddress.String()),
			slog.String("error", err.Error()))
		return domain.Receipt{}, domain.SubmissionRejected(err)
	}

	c.log.InfoContext(ctx, "answer submitted",
		slog.String("question", questionAddress.String()),
		slog.String("signature", receipt.Signature))
	return receipt, nil
}

// Close ends the session. Listings still in flight are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrSessionClosed
	}
	return nil
}
