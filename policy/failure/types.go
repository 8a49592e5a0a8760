// Package failure decides whether a validation message that failed somewhere in the routing
// pipeline is deleted from the queue or left for redelivery.
package failure

import "context"

// Kind enumerates where in the pipeline a failure occurred.
type Kind int

const (
	// FailNone indicates no failure occurred.
	FailNone Kind = iota
	// FailEnvelopeSchema indicates the validation message failed the inbound message schema.
	FailEnvelopeSchema
	// FailEnvelopeParse indicates the body, or the notification wrapping it, is not valid JSON.
	FailEnvelopeParse
	// FailPayloadSchema indicates the message failed the schema registered for its message type.
	FailPayloadSchema
	// FailNoHandler indicates no handler serves the message type.
	FailNoHandler
	// FailHandlerError indicates the handler returned a non-nil error.
	// Policy may choose to respect or override the handler's ShouldDelete decision.
	FailHandlerError
	// FailHandlerPanic indicates a panic occurred inside the handler or a middleware.
	FailHandlerPanic
	// FailMiddlewareError indicates an error was returned by the middleware-wrapped core pipeline.
	FailMiddlewareError
)

var kindNames = [...]string{
	FailNone:            "none",
	FailEnvelopeSchema:  "envelope_schema",
	FailEnvelopeParse:   "envelope_parse",
	FailPayloadSchema:   "payload_schema",
	FailNoHandler:       "no_handler",
	FailHandlerError:    "handler_error",
	FailHandlerPanic:    "handler_panic",
	FailMiddlewareError: "middleware_error",
}

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Result represents the delete decision and error to attach.
type Result struct {
	ShouldDelete bool
	Error        error
}

// Policy decides the final Result given a failure classification and current decision.
type Policy interface {
	Decide(ctx context.Context, kind Kind, inner error, current Result) Result
}
