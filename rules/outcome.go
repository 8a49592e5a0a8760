package rules

import "github.com/hatsunemiku3939/underwriter/types"

// Outcome is the raw verdict of a check. Zero-valued fields are completed by Normalize: an empty
// Target becomes the rule's target, nil excerpts are read off the subject records, a nil
// PercentMatch means 100 and a zero Code is derived from the verdict.
type Outcome struct {
	Valid        bool
	PercentMatch *float64
	Target       string
	Searched     any
	Found        any
	Code         types.ErrorCode
}

// Verdict returns an outcome with an explicit match percentage.
func Verdict(valid bool, percent float64) *Outcome {
	return &Outcome{Valid: valid, PercentMatch: &percent}
}

// Match returns a pass/fail outcome without a percentage.
func Match(valid bool) *Outcome {
	return &Outcome{Valid: valid}
}

// Wait asks for another attempt once the missing dependencies are filed.
func Wait() *Outcome {
	return &Outcome{Code: types.CodeWaitForDocuments}
}

// On sets the target field.
func (o *Outcome) On(target string) *Outcome {
	o.Target = target
	return o
}

// Excerpts sets the searched and found excerpts.
func (o *Outcome) Excerpts(searched, found any) *Outcome {
	o.Searched = searched
	o.Found = found
	return o
}

// Finding sets only the found excerpt.
func (o *Outcome) Finding(found any) *Outcome {
	o.Found = found
	return o
}

// WithCode sets an explicit error code.
func (o *Outcome) WithCode(c types.ErrorCode) *Outcome {
	o.Code = c
	return o
}

// Percent sets the match percentage.
func (o *Outcome) Percent(p float64) *Outcome {
	o.PercentMatch = &p
	return o
}
