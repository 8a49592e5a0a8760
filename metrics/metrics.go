// Package metrics exposes Prometheus collectors for routing and validation.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hatsunemiku3939/underwriter"
	"github.com/hatsunemiku3939/underwriter/types"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Routed messages by message type, failure kind and delete decision
	MessagesRouted *prometheus.CounterVec

	// Routing latency by message type
	RouteLatency *prometheus.HistogramVec

	// Check results by document type, check and code
	CheckResults *prometheus.CounterVec

	// Attempt decisions: requeued, terminal, failed
	Decisions *prometheus.CounterVec

	// Lock contention on per-document leases
	LockContention prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesRouted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriter_messages_routed_total",
			Help: "Validation messages routed by message type, failure kind and delete decision",
		}, []string{"message_type", "failure", "deleted"}),

		RouteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "underwriter_route_duration_seconds",
			Help:    "Duration of routing and handling one validation message",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"message_type"}),

		CheckResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriter_check_results_total",
			Help: "Check results by document type, check name and error code",
		}, []string{"document_type", "check", "code"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "underwriter_attempt_decisions_total",
			Help: "Outcome of each validation attempt",
		}, []string{"decision"}),

		LockContention: f.NewCounter(prometheus.CounterOpts{
			Name: "underwriter_lock_contention_total",
			Help: "Attempts skipped because another consumer held the document lock",
		}),
	}
}

// ObserveRouted records one routed message.
func (m *Metrics) ObserveRouted(rr underwriter.RoutedResult, d time.Duration) {
	if m == nil {
		return
	}
	deleted := "false"
	if rr.HandlerResult.ShouldDelete {
		deleted = "true"
	}
	m.MessagesRouted.WithLabelValues(rr.MessageType, rr.Failure.String(), deleted).Inc()
	m.RouteLatency.WithLabelValues(rr.MessageType).Observe(d.Seconds())
}

// ObserveResults records the codes of one dispatch.
func (m *Metrics) ObserveResults(documentType string, results types.ResultSet) {
	if m == nil {
		return
	}
	for name, res := range results {
		m.CheckResults.WithLabelValues(documentType, name, res.Code.String()).Inc()
	}
}

// IncrementDecision records how an attempt ended.
func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

// IncrementLockContention records a skipped attempt.
func (m *Metrics) IncrementLockContention() {
	if m != nil {
		m.LockContention.Inc()
	}
}

// Middleware records every message passing through a router.
func (m *Metrics) Middleware() underwriter.Middleware {
	return func(next underwriter.HandlerFunc) underwriter.HandlerFunc {
		return func(ctx context.Context, s *underwriter.RouteState) (underwriter.RoutedResult, error) {
			start := time.Now()
			rr, err := next(ctx, s)
			m.ObserveRouted(rr, time.Since(start))
			return rr, err
		}
	}
}

// Handler serves the registry gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
