package similarity

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Metric names a whole-text similarity function.
type Metric string

const (
	// MetricSequential compares texts character by character (Ratcliff/Obershelp).
	MetricSequential Metric = "sequential"
	// MetricJaccard compares the sets of significant words.
	MetricJaccard Metric = "jaccard"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Sequential returns the 0..1 sequence-matcher ratio of two raw texts.
func Sequential(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	return sequenceRatio(a, b)
}

// Jaccard returns the 0..1 overlap of the significant words of two texts.
func Jaccard(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	union := len(wa)
	inter := 0
	for w := range wb {
		if _, ok := wa[w]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	text = nonWord.ReplaceAllString(strings.ToLower(text), " ")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	set := map[string]struct{}{}
	for _, tok := range strings.Fields(text) {
		if utf8.RuneCountInString(tok) <= 2 || IsStopword(tok) {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Candidate is a document text compared against the current one.
type Candidate struct {
	DocumentID string
	Name       string
	Text       string
}

// Alert flags a candidate whose text is too close to the current one.
type Alert struct {
	DocumentID string
	Name       string
	Score      int
}

func (a Alert) String() string {
	return fmt.Sprintf("'nome': '%s', 'score': %d", a.Name, a.Score)
}

// Duplicates compares text with every candidate that has text and returns an alert for each
// score strictly above threshold (0..1). Scores are reported as rounded percentages.
func Duplicates(text string, candidates []Candidate, threshold float64, metric Metric) ([]Alert, error) {
	var fn func(a, b string) float64
	switch metric {
	case MetricSequential, "":
		fn = Sequential
	case MetricJaccard:
		fn = Jaccard
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", metric)
	}

	var alerts []Alert
	for _, c := range candidates {
		if c.Text == "" {
			continue
		}
		score := fn(text, c.Text)
		if score > threshold {
			alerts = append(alerts, Alert{
				DocumentID: c.DocumentID,
				Name:       c.Name,
				Score:      int(math.Round(score * 100)),
			})
		}
	}
	return alerts, nil
}
