// Package store is a local ledger backed by SQLite. It plays the part of the
// on-chain program for offline use: it checks the derived addresses, owns the
// account bytes and applies answers to the running average.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/layout"
	"github.com/pbaille/crowd/internal/pda"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrSeedsMismatch   = errors.New("account address does not match its seeds")
	ErrQuestionClosed  = errors.New("question reached its answer threshold")
	ErrDuplicateAnswer = errors.New("answerer already answered this question")
)

// Store handles database operations
type Store struct {
	db        *sql.DB
	programID domain.Address
	now       func() time.Time
}

// New opens the database at dbPath, migrates it, and serves accounts of programID.
func New(ctx context.Context, dbPath string, programID domain.Address) (*Store, error) {
	if programID.IsZero() {
		return nil, fmt.Errorf("open store: %w: empty program id", domain.ErrInvalidSeed)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time keeps read-modify-write on stats accounts atomic.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, programID: programID, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// InitializeQuestion creates the question account and its stats account in
// one transaction, after checking both addresses against their seeds.
func (s *Store) InitializeQuestion(ctx context.Context, p domain.InitializeParams) (domain.Receipt, error) {
	if p.Threshold == 0 {
		return domain.Receipt{}, fmt.Errorf("initialize: %w", layout.ErrThreshold)
	}
	questionData, err := layout.EncodeQuestion(domain.Question{
		Content:   p.Content,
		Author:    p.Owner,
		Threshold: p.Threshold,
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("initialize: %w", err)
	}
	// The program only stores what it can read back.
	if _, err := layout.DecodeQuestion(p.Question, questionData); err != nil {
		return domain.Receipt{}, fmt.Errorf("initialize: %w", err)
	}

	pair, err := pda.DerivePair(p.Content, p.Owner, s.programID)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("initialize: %w", err)
	}
	if pair.Question != p.Question || pair.Stats != p.Stats {
		return domain.Receipt{}, fmt.Errorf("initialize: %w", ErrSeedsMismatch)
	}

	statsData := layout.EncodeStats(domain.QuestionStats{QuestionAddress: p.Question})

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, addr := range []domain.Address{p.Question, p.Stats} {
			exists, err := s.accountExists(ctx, tx, addr)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", domain.ErrAccountExists, addr)
			}
		}

		now := s.now().UTC()
		query, args, err := sq.Insert("accounts").
			Columns("address", "program", "data", "created_at", "updated_at").
			Values(p.Question.String(), s.programID.String(), questionData, now, now).
			Values(p.Stats.String(), s.programID.String(), statsData, now, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert accounts: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("initialize: %w", err)
	}

	return domain.Receipt{Signature: uuid.New().String()}, nil
}

// SubmitAnswer folds value into the question's running average. A question
// accepts at most threshold answers and one answer per answerer.
func (s *Store) SubmitAnswer(ctx context.Context, p domain.AnswerParams) (domain.Receipt, error) {
	if !domain.ValidAnswer(p.Value) {
		return domain.Receipt{}, fmt.Errorf("submit answer: %w", domain.ErrInvalidAnswer)
	}
	statsAddr, _, err := pda.StatsAddress(p.Question, s.programID)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("submit answer: %w", err)
	}
	if statsAddr != p.Stats {
		return domain.Receipt{}, fmt.Errorf("submit answer: %w", ErrSeedsMismatch)
	}

	signature := uuid.New().String()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		questionData, err := s.accountData(ctx, tx, p.Question)
		if err != nil {
			return err
		}
		question, err := layout.DecodeQuestion(p.Question, questionData)
		if err != nil {
			return err
		}
		statsData, err := s.accountData(ctx, tx, p.Stats)
		if err != nil {
			return err
		}
		stats, err := layout.DecodeStats(p.Stats, statsData)
		if err != nil {
			return err
		}

		if stats.Closed(question.Threshold) {
			return ErrQuestionClosed
		}
		answered, err := s.hasAnswered(ctx, tx, p.Question, p.Answerer)
		if err != nil {
			return err
		}
		if answered {
			return ErrDuplicateAnswer
		}

		now := s.now().UTC()
		query, args, err := sq.Insert("answers").
			Columns("question", "answerer", "value", "signature", "created_at").
			Values(p.Question.String(), p.Answerer.String(), p.Value, signature, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}

		query, args, err = sq.Update("accounts").
			Set("data", layout.EncodeStats(stats.Apply(p.Value))).
			Set("updated_at", now).
			Where(sq.Eq{"address": p.Stats.String()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("submit answer: %w", err)
	}

	return domain.Receipt{Signature: signature}, nil
}

// FetchAllAccounts returns every account owned by programID in creation order.
func (s *Store) FetchAllAccounts(ctx context.Context, programID domain.Address) ([]domain.RawAccount, error) {
	query, args, err := sq.Select("address", "data").
		From("accounts").
		Where(sq.Eq{"program": programID.String()}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.RawAccount
	for rows.Next() {
		var (
			addr string
			data []byte
		)
		if err := rows.Scan(&addr, &data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		parsed, err := domain.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, domain.RawAccount{Address: parsed, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) accountExists(ctx context.Context, tx *sql.Tx, addr domain.Address) (bool, error) {
	_, err := s.accountData(ctx, tx, addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) accountData(ctx context.Context, tx *sql.Tx, addr domain.Address) ([]byte, error) {
	query, args, err := sq.Select("data").
		From("accounts").
		Where(sq.Eq{"address": addr.String(), "program": s.programID.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var data []byte
	err = tx.QueryRowContext(ctx, query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return data, nil
}

func (s *Store) hasAnswered(ctx context.Context, tx *sql.Tx, question, answerer domain.Address) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("answers").
		Where(sq.Eq{"question": question.String(), "answerer": answerer.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}

	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("count answers: %w", err)
	}
	return n > 0, nil
}
