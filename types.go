package underwriter

import (
	"context"
	"sync"

	"github.com/hatsunemiku3939/underwriter/pkg/jsonschema"
	failure "github.com/hatsunemiku3939/underwriter/policy/failure"
	"github.com/hatsunemiku3939/underwriter/types"
)

// HandlerResult indicates the outcome of processing a message.
type HandlerResult struct {
	// ShouldDelete is true if the message was processed (successfully or not) and should be deleted from the queue.
	// Set to false to leave it for redelivery once the visibility timeout expires.
	ShouldDelete bool
	// Error contains any error that occurred during processing. nil for success.
	Error error
}

// RoutedResult contains the complete result after a message has been routed and handled.
type RoutedResult struct {
	MessageType   string
	DocumentType  string
	DocumentID    string
	OwnerID       string
	Attempt       int
	HandlerResult HandlerResult
	// Failure is where the pipeline failed, FailNone on success.
	Failure failure.Kind
}

// MessageHandler processes one validation message of a given message type.
type MessageHandler func(ctx context.Context, msg *types.Message) HandlerResult

// RouteState carries per-message routing context through the middleware and core routing pipeline.
type RouteState struct {
	// Raw is the queue body as received.
	Raw []byte
	// Body is Raw without its notification wrapper.
	Body       []byte
	Message    *types.Message
	HandlerKey types.HandlerKey
	Handler    MessageHandler
	Schema     *jsonschema.Schema
}

// HandlerFunc is the function signature wrapped by middlewares.
type HandlerFunc func(ctx context.Context, state *RouteState) (RoutedResult, error)

// Middleware composes cross-cutting concerns around the routing core, forming a chain of HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Router routes validation messages to the handler of their message type.
// It is safe for concurrent use.
type Router struct {
	mu             sync.RWMutex
	handlers       map[types.HandlerKey]MessageHandler
	schemas        map[types.HandlerKey]*jsonschema.Schema
	envelopeSchema *jsonschema.Schema

	middlewares   []Middleware
	failurePolicy failure.Policy
	routingPolicy types.RoutingPolicy
}
