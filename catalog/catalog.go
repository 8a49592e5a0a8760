// Package catalog declares the checklists of the supported document types.
package catalog

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/hatsunemiku3939/underwriter/pkg/fraud"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

// Layouts the extraction pipeline and the proposal use for dates.
const (
	referenceDate  = "02/01/2006"
	extractedDate  = "02-01-2006"
	referenceMonth = "01/2006"
)

const notApplicable = "Validação não aplicável ao documento do representante legal"

type options struct {
	duplicateThreshold float64
	duplicateMetric    similarity.Metric
	scorer             *fraud.Scorer
}

// Option configures the catalogs built by Registry.
type Option func(*options)

// WithDuplicateDetection sets the threshold (0..1) and metric of the duplicate-text checks.
func WithDuplicateDetection(threshold float64, metric similarity.Metric) Option {
	return func(o *options) {
		if threshold > 0 {
			o.duplicateThreshold = threshold
		}
		if metric != "" {
			o.duplicateMetric = metric
		}
	}
}

// WithFraudScorer sets the scorer of the metadata date checks.
func WithFraudScorer(s *fraud.Scorer) Option {
	return func(o *options) { o.scorer = s }
}

func newOptions(opts []Option) *options {
	o := &options{
		duplicateThreshold: 0.85,
		duplicateMetric:    similarity.MetricSequential,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scorer == nil {
		o.scorer = fraud.New()
	}
	return o
}

// Registry returns a registry holding every catalog of this package.
func Registry(opts ...Option) (*rules.Registry, error) {
	o := newOptions(opts)
	return rules.NewRegistry(
		CNH(),
		CTPS(o),
		ComprovanteResidencia(o),
		ContratoPrestacaoServico(),
	)
}

// nameMatch compares a reference and an extracted name with the similarity scorer.
func nameMatch(field string, threshold float64) rules.Check {
	return func(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
		ref, err := in.Reference.Text(field)
		if err != nil {
			return nil, err
		}
		got, err := in.Extracted.Text(field)
		if err != nil {
			return nil, err
		}
		score := similarity.Score(strings.ToUpper(ref), strings.ToUpper(got))
		return rules.Verdict(score >= threshold, score), nil
	}
}

var nonDigit = regexp.MustCompile(`\D+`)

func digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// digitsMatch compares the digits of a document number, ignoring punctuation.
func digitsMatch(field string) rules.Check {
	return func(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
		ref, err := in.Reference.Text(field)
		if err != nil {
			return nil, err
		}
		got, err := in.Extracted.Text(field)
		if err != nil {
			return nil, err
		}
		return binary(digits(ref) == digits(got)), nil
	}
}

// sameDate compares a reference date (dd/mm/yyyy) with an extracted one (dd-mm-yyyy).
func sameDate(field string) rules.Check {
	return func(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
		want, err := date(in.Reference, field, referenceDate)
		if err != nil {
			return nil, err
		}
		got, err := date(in.Extracted, field, extractedDate)
		if err != nil {
			return nil, err
		}
		return binary(want.Equal(got)), nil
	}
}

func date(r types.Record, field, layout string) (time.Time, error) {
	s, err := r.Text(field)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(layout, strings.TrimSpace(s))
}

// binary is a pass/fail verdict scored 100 or 0.
func binary(valid bool) *rules.Outcome {
	if valid {
		return rules.Verdict(true, 100)
	}
	return rules.Verdict(false, 0)
}

// truthy reads a flag that counts as set unless it explicitly says otherwise.
func truthy(r types.Record, field string) bool {
	if !r.Has(field) {
		return true
	}
	return r.Bool(field)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
