package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ErrorCode is the closed taxonomy attached to every check result.
type ErrorCode int

const (
	CodeOK                 ErrorCode = 200
	CodeIncorrect          ErrorCode = 400
	CodeNotFound           ErrorCode = 404
	CodeWaitForDocuments   ErrorCode = 409
	CodeInvalid            ErrorCode = 422
	CodeInternalError      ErrorCode = 500
	CodeServiceUnavailable ErrorCode = 503
)

var codeNames = map[ErrorCode]string{
	CodeOK:                 "OK",
	CodeIncorrect:          "INCORRECT",
	CodeNotFound:           "NOT_FOUND",
	CodeWaitForDocuments:   "WAIT_FOR_DOCUMENTS",
	CodeInvalid:            "INVALID",
	CodeInternalError:      "INTERNAL_ERROR",
	CodeServiceUnavailable: "SERVICE_UNAVAILABLE",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "ErrorCode(" + strconv.Itoa(int(c)) + ")"
}

// Known reports whether c belongs to the taxonomy.
func (c ErrorCode) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// Retryable reports whether a result carrying c should schedule another attempt.
func (c ErrorCode) Retryable() bool {
	return c == CodeWaitForDocuments || c == CodeInternalError
}

const (
	// FieldSubscriptionErrors is the error-code key of subscription-rule checks.
	FieldSubscriptionErrors = "regras_subscricao_errors"
	// FieldFraudErrors is the error-code key of fraud checks.
	FieldFraudErrors = "fraud_errors"
)

// CheckResult is the canonical outcome of one named check.
type CheckResult struct {
	Valid           bool
	Target          string
	SearchedExcerpt any
	FoundExcerpt    any
	PercentMatch    float64
	Code            ErrorCode
	// ErrorField is the key the code is serialized under; empty means FieldSubscriptionErrors.
	ErrorField string
}

func (r CheckResult) errorField() string {
	if r.ErrorField == "" {
		return FieldSubscriptionErrors
	}
	return r.ErrorField
}

// Map renders the result in its stored and published shape.
func (r CheckResult) Map() map[string]any {
	return map[string]any{
		"valid":             r.Valid,
		"target":            r.Target,
		"trecho_procurado":  r.SearchedExcerpt,
		"trecho_encontrado": r.FoundExcerpt,
		"percent_match":     r.PercentMatch,
		r.errorField():      int(r.Code),
	}
}

// MarshalJSON implements json.Marshaler.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *CheckResult) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	res, err := ResultFromMap(m)
	if err != nil {
		return err
	}
	*r = res
	return nil
}

// ResultFromMap parses a stored result document.
func ResultFromMap(m map[string]any) (CheckResult, error) {
	res := CheckResult{
		SearchedExcerpt: m["trecho_procurado"],
		FoundExcerpt:    m["trecho_encontrado"],
	}
	if v, ok := m["valid"].(bool); ok {
		res.Valid = v
	}
	if v, ok := m["target"].(string); ok {
		res.Target = v
	}
	if p, ok := toFloat(m["percent_match"]); ok {
		res.PercentMatch = p
	}
	for _, field := range []string{FieldSubscriptionErrors, FieldFraudErrors} {
		raw, ok := m[field]
		if !ok {
			continue
		}
		code, ok := toFloat(raw)
		if !ok {
			return CheckResult{}, fmt.Errorf("result field %s is %T", field, raw)
		}
		res.Code = ErrorCode(int(code))
		res.ErrorField = field
		break
	}
	return res, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ResultSet maps check names to their results.
type ResultSet map[string]CheckResult

// Has reports whether a result is recorded for name.
func (s ResultSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Retryable reports whether any entry asks for another attempt.
func (s ResultSet) Retryable() bool {
	for _, r := range s {
		if r.Code.Retryable() {
			return true
		}
	}
	return false
}

// Without returns a copy of s minus name.
func (s ResultSet) Without(name string) ResultSet {
	out := make(ResultSet, len(s))
	for k, v := range s {
		if k != name {
			out[k] = v
		}
	}
	return out
}

// Map renders the set in its stored shape.
func (s ResultSet) Map() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v.Map()
	}
	return out
}
