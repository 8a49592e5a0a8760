package orchestrator

import (
	"context"
	"errors"

	"github.com/hatsunemiku3939/underwriter"
	"github.com/hatsunemiku3939/underwriter/blob"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

// permanent errors are settled by deleting the message; redelivery cannot fix them.
var permanent = []error{
	rules.ErrUnknownDocumentType,
	rules.ErrUnknownMessageType,
	blob.ErrObjectNotFound,
	blob.ErrMalformedObject,
}

// Permanent reports whether err will fail every redelivery as well.
func Permanent(err error) bool {
	for _, p := range permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// Handler adapts Process to the router. A completed attempt deletes the message, requeued or not:
// the next attempt lives in its own queue message.
func (o *Orchestrator) Handler() underwriter.MessageHandler {
	return func(ctx context.Context, msg *types.Message) underwriter.HandlerResult {
		if _, err := o.Process(ctx, msg); err != nil {
			return underwriter.HandlerResult{ShouldDelete: Permanent(err), Error: err}
		}
		return underwriter.HandlerResult{ShouldDelete: true}
	}
}
