package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrFieldMissing is returned when a required record field is absent or null.
	ErrFieldMissing = errors.New("record field missing")
	// ErrFieldType is returned when a record field holds a value of an unexpected type.
	ErrFieldType = errors.New("record field has unexpected type")
)

// NotFound is the sentinel the extraction pipeline writes for values it could not read.
const NotFound = "Not Found"

// Record is a loosely typed document record as decoded from JSON or BSON.
// Absent optional fields read as zero values rather than errors.
type Record map[string]any

// Value returns the raw value stored under field. Dotted paths descend into nested records.
func (r Record) Value(field string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[field]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(field, ".")
	if !found {
		return nil, false
	}
	return r.Sub(head).Value(rest)
}

// Has reports whether field is present with a non-null value.
func (r Record) Has(field string) bool {
	v, ok := r.Value(field)
	return ok && v != nil
}

// String returns field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	v, _ := r.Value(field)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Text returns field as a string and fails when it is absent or holds another type.
func (r Record) Text(field string) (string, error) {
	v, ok := r.Value(field)
	if !ok || v == nil {
		return "", fmt.Errorf("%q: %w", field, ErrFieldMissing)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is %T: %w", field, v, ErrFieldType)
	}
	return s, nil
}

// Int parses field as an integer. Numeric JSON values and numeric strings are accepted.
func (r Record) Int(field string) (int, error) {
	v, ok := r.Value(field)
	if !ok || v == nil {
		return 0, fmt.Errorf("%q: %w", field, ErrFieldMissing)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("%q is %T: %w", field, v, ErrFieldType)
}

// Bool interprets field the way the extraction pipeline encodes flags: any value other than
// a false-like literal counts as true. Absent fields are false.
func (r Record) Bool(field string) bool {
	v, ok := r.Value(field)
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.TrimSpace(b) {
		case "False", "false", "Falso", "falso", "":
			return false
		}
		return true
	}
	return true
}

// Strings returns field as a string list; a single string becomes a one-element list.
func (r Record) Strings(field string) []string {
	v, _ := r.Value(field)
	switch s := v.(type) {
	case string:
		return []string{s}
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Sub returns the nested record stored under field, or an empty record.
func (r Record) Sub(field string) Record {
	v, ok := r[field]
	if !ok {
		return Record{}
	}
	return AsRecord(v)
}

// AsRecord converts a decoded nested document into a Record.
func AsRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	}
	return Record{}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
