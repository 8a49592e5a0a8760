package failure

import "context"

// ImmediateDeletePolicy deletes messages that can never succeed: malformed bodies and unroutable
// message types. A panic keeps the message so the queue redelivers it. Handler and middleware
// errors keep the handler's own decision.
type ImmediateDeletePolicy struct{}

// Decide implements Policy.
func (ImmediateDeletePolicy) Decide(_ context.Context, kind Kind, inner error, current Result) Result {
	switch kind {
	case FailNone:
		return current
	case FailEnvelopeSchema, FailEnvelopeParse, FailPayloadSchema, FailNoHandler:
		return Result{ShouldDelete: true, Error: inner}
	case FailHandlerPanic:
		return Result{ShouldDelete: false, Error: inner}
	case FailHandlerError, FailMiddlewareError:
		if inner != nil {
			current.Error = inner
		}
		return current
	}
	return current
}
