// Package address scores a postal address extracted from a document against the declared one.
package address

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/types"
)

// Address is a Brazilian postal address split into its seven scored parts.
type Address struct {
	PostalCode   string `json:"cep"`
	Street       string `json:"rua"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
}

// FromRecord reads an address from its record form. Absent parts read as empty strings.
func FromRecord(r types.Record) Address {
	return Address{
		PostalCode:   field(r, "cep"),
		Street:       field(r, "rua"),
		Number:       field(r, "numero"),
		Complement:   field(r, "complemento"),
		Neighborhood: field(r, "bairro"),
		City:         field(r, "cidade"),
		State:        field(r, "estado"),
	}
}

func field(r types.Record, name string) string {
	v, _ := r.Value(name)
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.Itoa(int(x))
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

func (a Address) String() string {
	parts := []string{a.Street, a.Number, a.Complement, a.Neighborhood, a.City, a.State, a.PostalCode}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && p != types.NotFound {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// DefaultThreshold is the fraction of parts that must match for an address to be valid.
const DefaultThreshold = 0.7

// Part names a scored address part.
type Part string

const (
	PartPostalCode   Part = "cep"
	PartStreet       Part = "rua"
	PartNumber       Part = "numero"
	PartComplement   Part = "complemento"
	PartNeighborhood Part = "bairro"
	PartCity         Part = "cidade"
	PartState        Part = "estado"
)

// Parts lists every scored part in evaluation order.
var Parts = []Part{PartPostalCode, PartStreet, PartNumber, PartComplement, PartNeighborhood, PartCity, PartState}

// Scorer holds the per-part similarity thresholds (0..100).
type Scorer struct {
	StreetThreshold       float64
	NeighborhoodThreshold float64
	CityThreshold         float64
	ComplementThreshold   float64
}

// Default is the scorer used by address checks.
var Default = Scorer{
	StreetThreshold:       60,
	NeighborhoodThreshold: 60,
	CityThreshold:         60,
	ComplementThreshold:   90,
}

// Result is the per-part breakdown of an address comparison.
type Result struct {
	Parts    map[Part]bool
	Matched  int
	Fraction float64
}

// Percent is the matched fraction as a truncated percentage.
func (r Result) Percent() int {
	return int(r.Fraction * 100)
}

// Score compares two addresses with Default and the given threshold fraction.
func Score(reference, extracted Address, threshold float64) (bool, int) {
	return Default.Score(reference, extracted, threshold)
}

// Score returns whether at least threshold of the seven parts match, and the matched percentage.
// A non-positive threshold means DefaultThreshold.
func (s Scorer) Score(reference, extracted Address, threshold float64) (bool, int) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	res := s.Evaluate(reference, extracted)
	return res.Fraction >= threshold, res.Percent()
}

// Evaluate scores each part of the two addresses.
func (s Scorer) Evaluate(reference, extracted Address) Result {
	parts := map[Part]bool{
		PartPostalCode:   digits(reference.PostalCode) == digits(extracted.PostalCode),
		PartStreet:       fuzzy(reference.Street, extracted.Street, s.StreetThreshold),
		PartNumber:       sameNumber(reference.Number, extracted.Number),
		PartComplement:   fuzzy(complement(reference.Complement), complement(extracted.Complement), s.ComplementThreshold),
		PartNeighborhood: fuzzy(reference.Neighborhood, extracted.Neighborhood, s.NeighborhoodThreshold),
		PartCity:         fuzzy(reference.City, extracted.City, s.CityThreshold),
		PartState:        reference.State == extracted.State,
	}
	matched := 0
	for _, ok := range parts {
		if ok {
			matched++
		}
	}
	return Result{
		Parts:    parts,
		Matched:  matched,
		Fraction: float64(matched) / float64(len(Parts)),
	}
}

var nonDigit = regexp.MustCompile(`\D+`)

func digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// fuzzy treats equal non-empty normalized values as a match; the scorer would give 0 to
// values made only of stop-words. A part left empty never matches.
func fuzzy(a, b string, threshold float64) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	na := strings.TrimSpace(similarity.Normalize(a))
	if na == "" {
		return false
	}
	if na == strings.TrimSpace(similarity.Normalize(b)) {
		return true
	}
	return similarity.Score(a, b) >= threshold
}

func sameNumber(a, b string) bool {
	if b == types.NotFound {
		b = ""
	}
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return false
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return false
	}
	return x == y
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaces      = regexp.MustCompile(` +`)
)

// complement strips punctuation and reduces every alphabetic word to its first letter,
// so "Apartamento 12" and "Apto. 12" both read "A 12".
func complement(s string) string {
	if s == types.NotFound {
		return ""
	}
	s = punctuation.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	words := strings.Split(s, " ")
	for i, w := range words {
		if isAlpha(w) {
			for _, r := range w {
				words[i] = string(r)
				break
			}
		}
	}
	return strings.Join(words, " ")
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
