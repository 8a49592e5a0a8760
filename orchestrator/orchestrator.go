// Package orchestrator drives one validation attempt: it runs the checklist, decides whether the
// document needs another attempt and commits the results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/blob"
	"github.com/hatsunemiku3939/underwriter/lock"
	"github.com/hatsunemiku3939/underwriter/metrics"
	"github.com/hatsunemiku3939/underwriter/queue"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/store"
	"github.com/hatsunemiku3939/underwriter/types"
)

var (
	// ErrDispatch means the checklist could not run at all; nothing was committed.
	ErrDispatch = errors.New("dispatch")
	// ErrCommit means results could not be written.
	ErrCommit = errors.New("commit")
	// ErrRequeue means the next attempt could not be scheduled.
	ErrRequeue = errors.New("requeue")
	// ErrLargeMessage means a parked message could not be loaded.
	ErrLargeMessage = errors.New("large message")
)

// NoTextExcerpt settles a duplicate check that never found sibling text to compare.
const NoTextExcerpt = "Não há outros documentos com texto extraído"

const (
	defaultBaseDelay   = 2.0
	defaultMaxAttempts = 5
	defaultLockTTL     = 5 * time.Minute
)

// Dispatcher runs the checklist of a subject.
type Dispatcher interface {
	Dispatch(ctx context.Context, subject *types.Subject) (types.ResultSet, error)
}

// Requeuer schedules another attempt.
type Requeuer interface {
	Requeue(ctx context.Context, msg *types.Message, delay time.Duration) error
}

// Publisher receives terminal outcomes.
type Publisher interface {
	Publish(ctx context.Context, outcome *types.Outcome) error
}

// Decision is what one attempt did.
type Decision struct {
	Attempt int
	// Terminal is the end_retry flag of this attempt.
	Terminal  bool
	Requeued  bool
	Delay     time.Duration
	Published bool
	// Results are the results of this attempt as committed.
	Results types.ResultSet
}

// Orchestrator is safe for concurrent use; per-document exclusion comes from its Locker.
type Orchestrator struct {
	dispatcher  Dispatcher
	store       store.Writer
	requeuer    Requeuer
	publisher   Publisher
	locker      lock.Locker
	fetcher     blob.Fetcher
	folder      string
	metrics     *metrics.Metrics
	baseDelay   float64
	maxAttempts int
	maxDelay    time.Duration
	lockTTL     time.Duration
	log         *zap.SugaredLogger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetry sets the backoff base, the number of attempts that may be requeued and the delay cap.
func WithRetry(base float64, maxAttempts int, maxDelay time.Duration) Option {
	return func(o *Orchestrator) {
		if base > 0 {
			o.baseDelay = base
		}
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if maxDelay > 0 {
			o.maxDelay = maxDelay
		}
	}
}

// WithLocker serializes attempts on the same document.
func WithLocker(l lock.Locker, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithPublisher sends terminal standard and signature outcomes downstream.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithFetcher loads parked messages from folder.
func WithFetcher(f blob.Fetcher, folder string) Option {
	return func(o *Orchestrator) {
		o.fetcher = f
		o.folder = folder
	}
}

// WithMetrics records decisions and check codes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New returns an orchestrator. A nil Publisher, Locker or Fetcher disables that step.
func New(d Dispatcher, w store.Writer, r Requeuer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dispatcher:  d,
		store:       w,
		requeuer:    r,
		baseDelay:   defaultBaseDelay,
		maxAttempts: defaultMaxAttempts,
		maxDelay:    queue.MaxDelay,
		lockTTL:     defaultLockTTL,
		log:         zap.S().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Delay is the wait before the attempt following attempt: base^attempt seconds, capped.
func (o *Orchestrator) Delay(attempt int) time.Duration {
	secs := math.Pow(o.baseDelay, float64(attempt))
	if secs >= o.maxDelay.Seconds() {
		return o.maxDelay
	}
	return time.Duration(secs * float64(time.Second))
}

// Process runs one attempt of msg.
func (o *Orchestrator) Process(ctx context.Context, msg *types.Message) (*Decision, error) {
	if o.locker != nil {
		lease, err := o.locker.Acquire(ctx, lock.DocumentKey(msg.OwnerID, msg.DocumentID), o.lockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				o.metrics.IncrementLockContention()
			}
			return nil, err
		}
		defer func() {
			// The attempt's own deadline may be gone; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lease.Release(rctx); err != nil {
				o.log.Warnw("lock release failed", "document_id", msg.DocumentID, "error", err)
			}
		}()
	}

	full, err := o.load(ctx, msg)
	if err != nil {
		o.metrics.IncrementDecision("failed")
		return nil, err
	}

	subject := types.NewSubject(full)
	results, err := o.dispatcher.Dispatch(ctx, subject)
	if err != nil {
		o.metrics.IncrementDecision("failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrDispatch, msg.DocumentID, err)
	}
	o.metrics.ObserveResults(subject.Identity.DocumentType, results)

	attempt := full.CurrentAttempt()
	d := &Decision{Attempt: attempt, Results: results}
	d.Terminal = full.EndRetry || !results.Retryable() || attempt > o.maxAttempts

	merged, err := o.commit(ctx, subject.Identity, d)
	if err != nil {
		o.metrics.IncrementDecision("failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrCommit, msg.DocumentID, err)
	}

	if !d.Terminal {
		next := o.nextAttempt(msg, full, attempt)
		d.Delay = o.Delay(attempt)
		if err := o.requeuer.Requeue(ctx, next, d.Delay); err != nil {
			o.metrics.IncrementDecision("failed")
			return nil, fmt.Errorf("%w: %s: %w", ErrRequeue, msg.DocumentID, err)
		}
		d.Requeued = true
		o.metrics.IncrementDecision("requeued")
		o.log.Infow("attempt requeued", "document_id", msg.DocumentID, "attempt", attempt, "delay", d.Delay)
		return d, nil
	}

	o.metrics.IncrementDecision("terminal")
	if o.publisher != nil && subject.Kind != types.MessageFraudMetadata {
		out := &types.Outcome{
			JobID:        full.JobID,
			DocumentType: full.DocumentType,
			DocumentID:   full.DocumentID,
			Reference:    subject.Reference,
			Results:      merged,
		}
		if err := o.publisher.Publish(ctx, out); err != nil {
			// Results are committed; redelivery would only publish again.
			o.log.Errorw("publish failed", "document_id", msg.DocumentID, "error", err)
		} else {
			d.Published = true
		}
	}
	o.log.Infow("attempt terminal", "document_id", msg.DocumentID, "attempt", attempt, "results", len(results))
	return d, nil
}

func (o *Orchestrator) load(ctx context.Context, msg *types.Message) (*types.Message, error) {
	if !msg.LargeFile {
		return msg, nil
	}
	if o.fetcher == nil {
		return nil, fmt.Errorf("%w: %s: no object storage configured", ErrLargeMessage, msg.DocumentID)
	}
	full, err := blob.Resolve(ctx, o.fetcher, o.folder, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLargeMessage, msg.DocumentID, err)
	}
	return full, nil
}

// nextAttempt is the message requeued after attempt. Large messages travel as pointers.
func (o *Orchestrator) nextAttempt(in, full *types.Message, attempt int) *types.Message {
	var next types.Message
	if full.LargeFile {
		next = *full.Pointer()
	} else {
		next = *in
	}
	next.Attempt = attempt + 1
	next.EndRetry = false
	return &next
}

// commit stores the results of d where their shape says they belong and returns the subscription
// results as accumulated in the store.
func (o *Orchestrator) commit(ctx context.Context, id types.Identity, d *Decision) (types.ResultSet, error) {
	results := d.Results
	if results.Has(rules.MetadataDatesCheck) {
		return results, o.store.UpsertMetadataValidation(ctx, id.OwnerID, id.DocumentID, results, d.Terminal)
	}

	if sim, ok := results[rules.SimilarDocumentsCheck]; ok {
		if d.Terminal && sim.Code == types.CodeWaitForDocuments {
			sim = settle(sim)
			d.Results = withEntry(results, rules.SimilarDocumentsCheck, sim)
		}
		single := types.ResultSet{rules.SimilarDocumentsCheck: sim}
		if err := o.store.UpsertSimilarityValidation(ctx, id.OwnerID, id.DocumentID, single, d.Terminal); err != nil {
			return nil, err
		}
		results = results.Without(rules.SimilarDocumentsCheck)
	}
	return o.store.UpsertSubscriptionRules(ctx, id.OwnerID, id.DocumentID, results, d.Terminal)
}

// settle closes a duplicate check that waited out every attempt without sibling text.
func settle(r types.CheckResult) types.CheckResult {
	r.Valid = true
	r.Code = types.CodeOK
	r.SearchedExcerpt = ""
	r.FoundExcerpt = NoTextExcerpt
	r.PercentMatch = 100
	return r
}

func withEntry(s types.ResultSet, name string, r types.CheckResult) types.ResultSet {
	out := make(types.ResultSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	out[name] = r
	return out
}
