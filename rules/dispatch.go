package rules

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/types"
)

// Dispatcher runs the checklist that matches a subject.
type Dispatcher struct {
	registry *Registry
	resolver Resolver
	now      func() time.Time
	log      *zap.SugaredLogger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock sets the time checks are evaluated at.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher returns a dispatcher over registry. r may be nil when no check needs sibling
// documents.
func NewDispatcher(registry *Registry, r Resolver, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		resolver: r,
		now:      time.Now,
		log:      zap.S().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch evaluates every check of the subject's checklist in order. Each applicable check
// yields exactly one entry, failed or not.
func (d *Dispatcher) Dispatch(ctx context.Context, subject *types.Subject) (types.ResultSet, error) {
	catalog, err := d.registry.Lookup(subject.Identity.DocumentType)
	if err != nil {
		return nil, err
	}
	checks, err := catalog.Rules(subject.Kind)
	if err != nil {
		return nil, err
	}

	now := d.now()
	out := make(types.ResultSet, len(checks))
	for _, rule := range checks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dispatch %s: %w", rule.Name, err)
		}
		in := NewInput(subject, d.resolver, now)
		res, ok := Normalize(ctx, rule, in)
		if !ok {
			continue
		}
		out[rule.Name] = res
	}
	d.log.Debugw("checklist evaluated",
		"document_id", subject.Identity.DocumentID,
		"document_type", subject.Identity.DocumentType,
		"message_type", string(subject.Kind),
		"checks", len(checks),
		"results", len(out),
	)
	return out, nil
}
