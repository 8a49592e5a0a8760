// Package rules runs a document type's checklist against a subject and normalizes every check
// into a types.CheckResult.
package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hatsunemiku3939/underwriter/resolver"
	"github.com/hatsunemiku3939/underwriter/types"
)

// Resolver fetches the sibling documents a check depends on.
type Resolver interface {
	Resolve(ctx context.Context, id types.Identity, names []string, opts ...resolver.Option) (*resolver.Documents, error)
}

// Input is what a check sees: the subject, the evaluation time and access to sibling documents.
type Input struct {
	*types.Subject
	Now time.Time

	resolver Resolver
	missing  []string
}

// NewInput binds a subject to a resolver. A nil resolver makes Require fail.
func NewInput(subject *types.Subject, r Resolver, now time.Time) *Input {
	return &Input{Subject: subject, Now: now, resolver: r}
}

// Require resolves names for the subject. Names that are not available are remembered and
// reported if the check answers with Wait.
func (in *Input) Require(ctx context.Context, names []string, opts ...resolver.Option) (*resolver.Documents, error) {
	if in.resolver == nil {
		return nil, ErrNoResolver
	}
	docs, err := in.resolver.Resolve(ctx, in.Identity, names, opts...)
	if err != nil {
		return nil, err
	}
	in.missing = docs.Missing
	return docs, nil
}

// Missing returns the dependencies the last Require call could not find.
func (in *Input) Missing() []string {
	if in.missing == nil {
		return []string{}
	}
	return in.missing
}

// Check is one field-level validation. Returning a nil outcome means the check does not apply
// and no result is recorded.
type Check func(ctx context.Context, in *Input) (*Outcome, error)

// Rule binds a check to its name.
type Rule struct {
	Name string
	// Target overrides the default target, the name without its leading prefix.
	Target string
	// ErrorField is the key the error code is stored under.
	ErrorField string
	Check      Check
}

// Standard declares a subscription rule.
func Standard(name string, check Check) Rule {
	return Rule{Name: name, ErrorField: types.FieldSubscriptionErrors, Check: check}
}

// Fraud declares a fraud rule.
func Fraud(name string, check Check) Rule {
	return Rule{Name: name, ErrorField: types.FieldFraudErrors, Check: check}
}

// DefaultTarget returns the target of the rule: Target if set, otherwise everything after the
// first underscore of Name ("validacao_data_nascimento" targets "data_nascimento").
func (r Rule) DefaultTarget() string {
	if r.Target != "" {
		return r.Target
	}
	if _, rest, ok := strings.Cut(r.Name, "_"); ok {
		return rest
	}
	return r.Name
}

func (r Rule) errorField() string {
	if r.ErrorField == "" {
		return types.FieldSubscriptionErrors
	}
	return r.ErrorField
}

// Catalog is the checklist of one document type, one list per message type.
type Catalog struct {
	DocumentType string
	Standard     []Rule
	Signature    []Rule
	Fraud        []Rule
}

// Rules returns the checklist for kind.
func (c *Catalog) Rules(kind types.MessageType) ([]Rule, error) {
	switch kind {
	case types.MessageStandard, "":
		return c.Standard, nil
	case types.MessageSignature:
		return c.Signature, nil
	case types.MessageFraudMetadata:
		return c.Fraud, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrUnknownMessageType)
}

// Registry maps document types to catalogs. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// NewRegistry returns a registry holding catalogs.
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[string]*Catalog)}
	for _, c := range catalogs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. Document types are matched case-insensitively.
func (r *Registry) Register(c *Catalog) error {
	key := strings.ToLower(c.DocumentType)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.catalogs[key]; ok {
		return fmt.Errorf("%s: %w", c.DocumentType, ErrDuplicateCatalog)
	}
	r.catalogs[key] = c
	return nil
}

// Lookup returns the catalog of docType.
func (r *Registry) Lookup(docType string) (*Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogs[strings.ToLower(docType)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", docType, ErrUnknownDocumentType)
	}
	return c, nil
}

// Types lists the registered document types in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.catalogs))
	for k := range r.catalogs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Checks whose results are stored apart from the subscription rules.
const (
	MetadataDatesCheck    = "validacao_metadado_datas"
	SimilarDocumentsCheck = "validacao_fraude_docs_similares"
)
