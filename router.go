// Package underwriter routes document validation messages from a queue to the handler of their
// message type and decides, through a failure policy, whether each message is deleted.
package underwriter

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/pkg/jsonschema"
	failure "github.com/hatsunemiku3939/underwriter/policy/failure"
	routing "github.com/hatsunemiku3939/underwriter/policy/routing"
	"github.com/hatsunemiku3939/underwriter/types"
)

// NewRouter creates a Router that validates every message against envelopeSchema.
func NewRouter(envelopeSchema string, opts ...RouterOption) (*Router, error) {
	// Compile the schema upon creation to fail fast.
	envelope, err := jsonschema.Compile(envelopeSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelopeSchema, err)
	}

	r := &Router{
		handlers:       make(map[types.HandlerKey]MessageHandler),
		schemas:        make(map[types.HandlerKey]*jsonschema.Schema),
		envelopeSchema: envelope,
		failurePolicy:  failure.ImmediateDeletePolicy{},
		routingPolicy:  routing.ExactMatchPolicy{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Register sets the handler of a message type.
func (r *Router) Register(kind types.MessageType, handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[types.HandlerKey(kind)] = handler
}

// RegisterSchema adds a JSON schema messages of kind must satisfy on top of the envelope schema.
func (r *Router) RegisterSchema(kind types.MessageType, schema string) error {
	compiled, err := jsonschema.Compile(schema)
	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidSchema, kind, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[types.HandlerKey(kind)] = compiled
	return nil
}

// Use appends middlewares. The first one registered is the outermost.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw...)
}

// Route validates raw and hands it to the handler of its message type. It never panics; a panic
// in a handler or middleware is reported as FailHandlerPanic.
func (r *Router) Route(ctx context.Context, raw []byte) (rr RoutedResult) {
	r.mu.RLock()
	mws := append([]Middleware(nil), r.middlewares...)
	r.mu.RUnlock()

	h := HandlerFunc(r.core)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	state := &RouteState{Raw: raw}
	defer func() {
		if p := recover(); p != nil {
			zap.S().Named("router").Errorw("recovered panic while routing", "panic", p, "document_id", documentID(state))
			rr = resultOf(state)
			rr.Failure = failure.FailHandlerPanic
			rr.HandlerResult = r.decide(ctx, failure.FailHandlerPanic, fmt.Errorf("%w: %v", ErrHandlerPanic, p), HandlerResult{})
		}
	}()

	rr, err := h(ctx, state)
	if err != nil {
		rr.Failure = failure.FailMiddlewareError
		rr.HandlerResult = r.decide(ctx, failure.FailMiddlewareError, err, rr.HandlerResult)
	}
	return rr
}

// core is the routing pipeline wrapped by middlewares.
func (r *Router) core(ctx context.Context, state *RouteState) (RoutedResult, error) {
	if state == nil {
		return RoutedResult{}, ErrNilState
	}

	body, err := Unwrap(state.Raw)
	if err != nil {
		return r.fail(ctx, state, failure.FailEnvelopeParse, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)), nil
	}
	state.Body = body

	if verr := r.envelopeSchema.Check(body); verr != nil {
		return r.fail(ctx, state, failure.FailEnvelopeSchema, fmt.Errorf("%w: %w", ErrInvalidEnvelope, verr)), nil
	}

	msg, err := types.DecodeMessage(body)
	if err != nil {
		return r.fail(ctx, state, failure.FailEnvelopeParse, fmt.Errorf("%w: %w", ErrFailedToParseEnvelope, err)), nil
	}
	state.Message = msg

	r.mu.RLock()
	available := make([]types.HandlerKey, 0, len(r.handlers))
	for k := range r.handlers {
		available = append(available, k)
	}
	sort.Slice(available, func(i, j int) bool { return available[i] < available[j] })
	key := r.routingPolicy.Decide(ctx, msg, available)
	handler, ok := r.handlers[key]
	schema, hasSchema := r.schemas[key]
	r.mu.RUnlock()

	if key == "" || !ok {
		return r.fail(ctx, state, failure.FailNoHandler,
			fmt.Errorf("%w for message type %q", ErrNoHandlerRegistered, msg.MessageType)), nil
	}
	state.HandlerKey = key
	state.Handler = handler

	if hasSchema {
		state.Schema = schema
		if verr := schema.Check(body); verr != nil {
			return r.fail(ctx, state, failure.FailPayloadSchema, fmt.Errorf("%w: %w", ErrInvalidMessagePayload, verr)), nil
		}
	}

	hr := handler(ctx, msg)
	rr := resultOf(state)
	if hr.Error != nil {
		rr.Failure = failure.FailHandlerError
		rr.HandlerResult = r.decide(ctx, failure.FailHandlerError, hr.Error, hr)
		return rr, nil
	}
	rr.HandlerResult = r.decide(ctx, failure.FailNone, nil, hr)
	return rr, nil
}

func (r *Router) fail(ctx context.Context, state *RouteState, kind failure.Kind, err error) RoutedResult {
	rr := resultOf(state)
	rr.Failure = kind
	rr.HandlerResult = r.decide(ctx, kind, err, HandlerResult{})
	return rr
}

func (r *Router) decide(ctx context.Context, kind failure.Kind, inner error, current HandlerResult) HandlerResult {
	res := r.failurePolicy.Decide(ctx, kind, inner, failure.Result{
		ShouldDelete: current.ShouldDelete,
		Error:        current.Error,
	})
	return HandlerResult{ShouldDelete: res.ShouldDelete, Error: res.Error}
}

func resultOf(state *RouteState) RoutedResult {
	if state == nil || state.Message == nil {
		return RoutedResult{MessageType: "unknown"}
	}
	m := state.Message
	kind := string(m.MessageType)
	if kind == "" {
		kind = string(types.MessageStandard)
	}
	return RoutedResult{
		MessageType:  kind,
		DocumentType: m.DocumentType,
		DocumentID:   m.DocumentID,
		OwnerID:      m.OwnerID,
		Attempt:      m.CurrentAttempt(),
	}
}

func documentID(state *RouteState) string {
	if state == nil || state.Message == nil {
		return ""
	}
	return state.Message.DocumentID
}
