package failure

import "context"

// SQSRedrivePolicy never deletes a failed message, so the queue's redrive policy moves poison
// messages to a dead-letter queue after its receive count.
type SQSRedrivePolicy struct{}

// Decide implements Policy.
func (SQSRedrivePolicy) Decide(_ context.Context, kind Kind, inner error, current Result) Result {
	if kind == FailNone {
		return current
	}
	current.ShouldDelete = false
	if inner != nil && current.Error == nil {
		current.Error = inner
	}
	return current
}
