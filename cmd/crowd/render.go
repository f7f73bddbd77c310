package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/pbaille/crowd/internal/classifier"
	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/pda"
)

func checkFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return checkFormat(format)
}

func renderQuestions(w io.Writer, format string, views []domain.QuestionView) error {
	if format != "text" {
		if views == nil {
			views = []domain.QuestionView{}
		}
		return encode(w, format, views)
	}

	if len(views) == 0 {
		fmt.Fprintln(w, "No questions yet. Use 'crowd create' to ask one.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tQUESTION\tANSWERS\tAVERAGE")
	for _, v := range views {
		answers, average := "-", "-"
		if v.Stats != nil {
			answers = fmt.Sprintf("%d/%d", v.Stats.AnswersCount, v.Threshold)
			if mean, ok := v.Stats.Mean(); ok {
				average = fmt.Sprintf("%.4g", mean)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Address, truncate(v.Content, 60), answers, average)
	}
	return tw.Flush()
}

// accountRow is the printable form of a classified account.
type accountRow struct {
	Kind     string                `json:"kind" yaml:"kind"`
	Address  domain.Address        `json:"address" yaml:"address"`
	Question *domain.Question      `json:"question,omitempty" yaml:"question,omitempty"`
	Stats    *domain.QuestionStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Reason   string                `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type accountsDoc struct {
	Accounts []accountRow       `json:"accounts" yaml:"accounts"`
	Summary  classifier.Summary `json:"summary" yaml:"summary"`
}

func renderAccounts(w io.Writer, format string, accounts []domain.ClassifiedAccount, sum classifier.Summary) error {
	rows := make([]accountRow, 0, len(accounts))
	for _, a := range accounts {
		row := accountRow{Kind: a.Kind.String(), Address: a.Address, Question: a.Question, Stats: a.Stats}
		if a.Err != nil {
			row.Reason = a.Err.Error()
		}
		rows = append(rows, row)
	}

	if format != "text" {
		return encode(w, format, accountsDoc{Accounts: rows, Summary: sum})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tADDRESS\tDETAIL")
	for _, r := range rows {
		var detail string
		switch {
		case r.Question != nil:
			detail = fmt.Sprintf("%s (author %s, threshold %d)",
				truncate(r.Question.Content, 60), r.Question.Author, r.Question.Threshold)
		case r.Stats != nil:
			average := "-"
			if mean, ok := r.Stats.Mean(); ok {
				average = fmt.Sprintf("%.4g", mean)
			}
			detail = fmt.Sprintf("question %s, %d answers, average %s",
				r.Stats.QuestionAddress, r.Stats.AnswersCount, average)
		default:
			detail = r.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Kind, r.Address, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d accounts: %d questions, %d stats, %d unknown\n", sum.Total(), sum.Questions, sum.Stats, sum.Unknown)
	return nil
}

func renderPair(w io.Writer, format string, pair pda.Pair) error {
	if format != "text" {
		return encode(w, format, pair)
	}
	fmt.Fprintf(w, "Question: %s (bump %d)\n", pair.Question, pair.QuestionBump)
	fmt.Fprintf(w, "Stats:    %s (bump %d)\n", pair.Stats, pair.StatsBump)
	return nil
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
