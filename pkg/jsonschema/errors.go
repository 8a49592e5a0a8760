package jsonschema

import "errors"

var (
	// ErrSchemaValidationSystem is returned when a document cannot be checked at all, for
	// instance because it is not JSON.
	ErrSchemaValidationSystem = errors.New("schema validation system error")
	// ErrSchemaValidationFailed is returned when a document breaks the schema.
	ErrSchemaValidationFailed = errors.New("schema validation failed")
	ErrInvalidSchema          = errors.New("invalid schema")
)
