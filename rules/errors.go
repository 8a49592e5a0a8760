package rules

import "errors"

var (
	// ErrConversion marks a check failure caused by an unreadable value, such as a malformed date.
	ErrConversion          = errors.New("conversion")
	ErrUnknownDocumentType = errors.New("unknown document type")
	ErrUnknownMessageType  = errors.New("unknown message type")
	ErrDuplicateCatalog    = errors.New("duplicate catalog")
	ErrNoResolver          = errors.New("no dependency resolver")
)
