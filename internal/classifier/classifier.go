// Package classifier turns fetched opaque accounts into typed entities and
// joins each question with its statistics.
package classifier

import (
	"fmt"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/layout"
)

// decoder attempts one layout; a nil error means the blob matched
type decoder func(domain.Address, []byte) (domain.ClassifiedAccount, error)

// Classifier decodes accounts against the known layouts in a fixed order:
// question first, then stats. The first layout that decodes wins.
type Classifier struct {
	order []decoder
}

// New creates a Classifier, refusing layouts that could alias each other
func New() (*Classifier, error) {
	if err := layout.CheckDisjoint(); err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return &Classifier{
		order: []decoder{decodeQuestion, decodeStats},
	}, nil
}

func decodeQuestion(addr domain.Address, data []byte) (domain.ClassifiedAccount, error) {
	q, err := layout.DecodeQuestion(addr, data)
	if err != nil {
		return domain.ClassifiedAccount{}, err
	}
	return domain.ClassifiedAccount{Kind: domain.KindQuestion, Address: addr, Question: &q}, nil
}

func decodeStats(addr domain.Address, data []byte) (domain.ClassifiedAccount, error) {
	s, err := layout.DecodeStats(addr, data)
	if err != nil {
		return domain.ClassifiedAccount{}, err
	}
	return domain.ClassifiedAccount{Kind: domain.KindQuestionStats, Address: addr, Stats: &s}, nil
}

// Classify tags every account with its layout. The output has one entry per
// input, in input order; blobs matching no layout come back as KindUnknown
// with an error wrapping domain.ErrClassificationMismatch.
func (c *Classifier) Classify(accounts []domain.RawAccount) []domain.ClassifiedAccount {
	out := make([]domain.ClassifiedAccount, len(accounts))
	for i, acc := range accounts {
		out[i] = c.classifyOne(acc)
	}
	return out
}

func (c *Classifier) classifyOne(acc domain.RawAccount) domain.ClassifiedAccount {
	var errs []error
	for _, decode := range c.order {
		ca, err := decode(acc.Address, acc.Data)
		if err == nil {
			return ca
		}
		errs = append(errs, err)
	}
	return domain.ClassifiedAccount{
		Kind:    domain.KindUnknown,
		Address: acc.Address,
		Err:     fmt.Errorf("%w: %d bytes: %v", domain.ErrClassificationMismatch, len(acc.Data), errs),
	}
}

// Aggregate returns the questions in input order, each joined with the stats
// account whose question address equals it. Missing stats are left nil; when
// several stats reference the same question the first one wins.
func Aggregate(classified []domain.ClassifiedAccount) []domain.QuestionView {
	byQuestion := make(map[domain.Address]*domain.QuestionStats)
	for _, ca := range classified {
		if ca.Kind != domain.KindQuestionStats {
			continue
		}
		if _, ok := byQuestion[ca.Stats.QuestionAddress]; !ok {
			byQuestion[ca.Stats.QuestionAddress] = ca.Stats
		}
	}

	views := make([]domain.QuestionView, 0, len(classified))
	for _, ca := range classified {
		if ca.Kind != domain.KindQuestion {
			continue
		}
		views = append(views, domain.QuestionView{
			Question: *ca.Question,
			Stats:    byQuestion[ca.Address],
		})
	}
	return views
}

// Summary counts classified accounts per kind
type Summary struct {
	Questions int `json:"questions" yaml:"questions"`
	Stats     int `json:"stats" yaml:"stats"`
	Unknown   int `json:"unknown" yaml:"unknown"`
}

// Summarize counts the result of Classify.
func Summarize(classified []domain.ClassifiedAccount) Summary {
	var s Summary
	for _, ca := range classified {
		switch ca.Kind {
		case domain.KindQuestion:
			s.Questions++
		case domain.KindQuestionStats:
			s.Stats++
		default:
			s.Unknown++
		}
	}
	return s
}

// Total is the number of accounts summarized
func (s Summary) Total() int {
	return s.Questions + s.Stats + s.Unknown
}
