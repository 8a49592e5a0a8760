// Package jsonschema compiles JSON schemas once and checks raw message bodies against them.
package jsonschema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled schema. It is safe for concurrent use.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile parses and compiles a schema document.
func Compile(schema string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile for schemas known at build time.
func MustCompile(schema string) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Check validates a raw JSON document. Every violation is reported as "field: description".
func (s *Schema) Check(doc []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(doc))
	return FormatErrors(result, err)
}

// FormatErrors folds a validation outcome into one error wrapping ErrSchemaValidationSystem or
// ErrSchemaValidationFailed.
func FormatErrors(result *gojsonschema.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaValidationSystem, err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.Field()+": "+desc.Description())
	}
	return fmt.Errorf("%w: %s", ErrSchemaValidationFailed, strings.Join(violations, "; "))
}
