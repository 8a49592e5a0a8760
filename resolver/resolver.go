// Package resolver fetches the sibling documents a check depends on and records which of them are
// not available yet.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/store"
	"github.com/hatsunemiku3939/underwriter/types"
)

// ParentKey prefixes the names of headquarters documents in a missing list.
const ParentKey = "matriz"

// ErrCurrentDocument is returned when the document under validation is not among the
// aggregator's documents of its own type.
var ErrCurrentDocument = errors.New("current document not filed")

type options struct {
	parent   bool
	sameType bool
}

// Option adjusts a Resolve call.
type Option func(*options)

// WithParent also resolves every name against the headquarters of a branch owner.
func WithParent() Option {
	return func(o *options) { o.parent = true }
}

// WithSameType resolves names eligible for duplicate detection to the other documents of that
// type filed under the same aggregator instead of the owner's latest extraction.
func WithSameType() Option {
	return func(o *options) { o.sameType = true }
}

// Siblings are the same-type documents of an aggregator, split around the current document.
type Siblings struct {
	Current store.SiblingDocument
	Others  []store.SiblingDocument
}

// NoComparison reports whether there is nothing to compare the current document with.
func (s *Siblings) NoComparison() bool {
	return len(s.Others) == 0
}

// Documents is the outcome of one Resolve call.
type Documents struct {
	docs     map[string]types.Record
	parent   map[string]types.Record
	siblings map[string]*Siblings
	// Missing lists the names that resolved to nothing, parent names as "matriz.<name>".
	Missing []string
	// HasParent is true when the owner is a branch whose headquarters is filed.
	HasParent bool
}

// Get returns the resolved record for name, or nil when it is missing.
func (d *Documents) Get(name string) types.Record {
	return d.docs[name]
}

// Parent returns the headquarters record for name, or nil.
func (d *Documents) Parent(name string) types.Record {
	return d.parent[name]
}

// Siblings returns the same-type documents resolved for name, or nil when name was resolved
// as a plain dependency.
func (d *Documents) Siblings(name string) *Siblings {
	return d.siblings[name]
}

func (d *Documents) miss(name string) {
	if !funk.ContainsString(d.Missing, name) {
		d.Missing = append(d.Missing, name)
	}
}

// Resolver reads dependencies from a store.Reader.
type Resolver struct {
	store   store.Reader
	similar []string
	log     *zap.SugaredLogger
}

// New returns a resolver. similar lists the document types eligible for duplicate detection.
func New(s store.Reader, similar []string) *Resolver {
	lowered := make([]string, 0, len(similar))
	for _, t := range similar {
		if t = strings.TrimSpace(t); t != "" {
			lowered = append(lowered, strings.ToLower(t))
		}
	}
	return &Resolver{store: s, similar: lowered, log: zap.S().Named("resolver")}
}

// Resolve fetches names for the document identified by id.
func (r *Resolver) Resolve(ctx context.Context, id types.Identity, names []string, opts ...Option) (*Documents, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	out := &Documents{
		docs:     make(map[string]types.Record, len(names)),
		parent:   make(map[string]types.Record),
		siblings: make(map[string]*Siblings),
	}

	parentID := ""
	if o.parent {
		p, err := r.store.ParentOwner(ctx, id.OwnerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup parent of %s: %w", id.OwnerID, err)
		}
		parentID = p
		out.HasParent = p != ""
	}

	for _, name := range names {
		if o.sameType && funk.ContainsString(r.similar, strings.ToLower(name)) {
			s, err := r.siblings(ctx, id, name)
			if err != nil {
				return nil, err
			}
			out.siblings[name] = s
			continue
		}

		rec, err := r.latest(ctx, id.OwnerID, name)
		if err != nil {
			return nil, err
		}
		out.docs[name] = rec
		if rec == nil {
			out.miss(name)
		}

		if parentID != "" {
			prec, err := r.latest(ctx, parentID, name)
			if err != nil {
				return nil, err
			}
			out.parent[name] = prec
			if prec == nil {
				out.miss(ParentKey + "." + name)
			}
		}
	}
	if len(out.Missing) > 0 {
		r.log.Debugw("dependencies missing", "document_id", id.DocumentID, "missing", out.Missing)
	}
	return out, nil
}

func (r *Resolver) latest(ctx context.Context, ownerID, name string) (types.Record, error) {
	rec, err := r.store.LatestExtraction(ctx, ownerID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s of %s: %w", name, ownerID, err)
	}
	return rec, nil
}

func (r *Resolver) siblings(ctx context.Context, id types.Identity, name string) (*Siblings, error) {
	all, err := r.store.AggregatorDocuments(ctx, id.AggregatorID, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s documents of %s: %w", name, id.AggregatorID, err)
	}
	s := &Siblings{}
	found := false
	for _, d := range all {
		if d.DocumentID == id.DocumentID {
			s.Current = d
			found = true
			continue
		}
		s.Others = append(s.Others, d)
	}
	if !found {
		return nil, fmt.Errorf("%s in %s: %w", id.DocumentID, id.AggregatorID, ErrCurrentDocument)
	}
	return s, nil
}
