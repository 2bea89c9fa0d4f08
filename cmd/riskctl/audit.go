package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/message"

	"heartrisk/predlog"
)

// auditSummary aggregates a prediction log.
type auditSummary struct {
	Rows           int
	Positive       int
	ProbabilitySum float64
	BadRows        []*predlog.RowError
}

func (s auditSummary) positiveRate() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Positive) / float64(s.Rows)
}

func (s auditSummary) meanProbability() float64 {
	if s.Rows == 0 {
		return 0
	}
	return s.ProbabilitySum / float64(s.Rows)
}

func newAuditCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "audit [prediction_logs.csv]",
		Short: "Summarize a prediction log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "prediction_logs.csv"
			if len(args) == 1 {
				path = args[0]
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := audit(f)
			if err != nil {
				var corrupt *predlog.CorruptLogError
				if errors.As(err, &corrupt) {
					corrupt.Path = path
				}
				return err
			}
			printSummary(cmd.OutOrStdout(), opts.printer(), summary)
			if len(summary.BadRows) > 0 {
				return fmt.Errorf("%d malformed rows in %s", len(summary.BadRows), path)
			}
			return nil
		},
	}
}

// audit streams the log. Malformed rows are collected and skipped; a bad
// header stops the audit.
func audit(r io.Reader) (auditSummary, error) {
	var s auditSummary
	reader := predlog.NewReader(r)
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			var rowErr *predlog.RowError
			if errors.As(err, &rowErr) {
				s.BadRows = append(s.BadRows, rowErr)
				continue
			}
			return s, err
		}
		s.Rows++
		if entry.Prediction == 1 {
			s.Positive++
		}
		s.ProbabilitySum += entry.Probability
	}
}

func printSummary(w io.Writer, p *message.Printer, s auditSummary) {
	p.Fprintf(w, "predictions:      %d\n", s.Rows)
	p.Fprintf(w, "high risk:        %d (%.1f%%)\n", s.Positive, s.positiveRate()*100)
	p.Fprintf(w, "mean probability: %.2f\n", s.meanProbability())
	for _, bad := range s.BadRows {
		p.Fprintf(w, "malformed row: %v\n", bad)
	}
}
