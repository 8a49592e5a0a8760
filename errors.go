package underwriter

import "errors"

var (
	ErrInvalidEnvelopeSchema = errors.New("invalid envelope schema")
	ErrInvalidSchema         = errors.New("invalid schema")
	ErrInvalidEnvelope       = errors.New("invalid envelope")
	ErrFailedToParseEnvelope = errors.New("failed to parse envelope")
	ErrInvalidMessagePayload = errors.New("invalid message payload")
	ErrNoHandlerRegistered   = errors.New("no handler registered")
	ErrHandlerPanic          = errors.New("handler panic")
	ErrNilState              = errors.New("nil route state")
)
