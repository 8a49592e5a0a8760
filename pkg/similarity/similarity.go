// Package similarity scores fuzzy equality between names, addresses and document texts.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/xrash/smetrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// jaroBoostThreshold and jaroPrefixSize are the standard Winkler parameters.
	jaroBoostThreshold = 0.7
	jaroPrefixSize     = 4
)

// Scorer blends a Jaro-Winkler score with a ratio over word initials.
type Scorer struct {
	PhoneticWeight     float64
	AbbreviationWeight float64
}

// Default is the scorer used by every name and address comparison.
var Default = Scorer{PhoneticWeight: 1, AbbreviationWeight: 0.2}

// Score returns the blended 0..100 similarity of a and b using Default.
func Score(a, b string) float64 {
	return Default.Score(a, b)
}

// Score returns the blended similarity of a and b. The Jaro-Winkler component is rescaled
// so that 50 maps to 0 and may go negative; a zero component on either side yields 0.
func (s Scorer) Score(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	// order the pair so the greedy matchers see the same input both ways
	if a > b {
		a, b = b, a
	}

	jw := smetrics.JaroWinkler(a, b, jaroBoostThreshold, jaroPrefixSize) * 100
	ab := Ratio(Abbreviate(a), Abbreviate(b))
	if jw == 0 || ab == 0 {
		return 0
	}
	return ((jw-50)*2*s.PhoneticWeight + ab*s.AbbreviationWeight) / (s.PhoneticWeight + s.AbbreviationWeight)
}

// Normalize strips diacritics and lower-cases s.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Abbreviate returns the initials of the non-stopword words of an already normalized string,
// separated by spaces.
func Abbreviate(s string) string {
	var initials []string
	for _, tok := range strings.Fields(s) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok == "" || IsStopword(tok) {
			continue
		}
		for _, r := range tok {
			initials = append(initials, string(r))
			break
		}
	}
	return strings.Join(initials, " ")
}

// Ratio is the Ratcliff/Obershelp similarity of a and b over characters, scaled to 0..100
// and rounded. Empty input on either side scores 0.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return math.Round(100 * sequenceRatio(a, b))
}

func sequenceRatio(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
