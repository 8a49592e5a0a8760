// Package routing picks the handler that serves a validation message.
package routing

import (
	"context"

	"github.com/hatsunemiku3939/underwriter/types"
)

// ExactMatchPolicy selects the handler registered for the message's message_type. A message
// without one is a standard run.
type ExactMatchPolicy struct{}

// Decide returns the matching key if present; otherwise empty.
func (ExactMatchPolicy) Decide(_ context.Context, msg *types.Message, available []types.HandlerKey) types.HandlerKey {
	kind := msg.MessageType
	if kind == "" {
		kind = types.MessageStandard
	}
	want := types.HandlerKey(kind)
	for _, k := range available {
		if k == want {
			return k
		}
	}
	return ""
}
