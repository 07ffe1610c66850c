// Package monitoring provides the injected metrics sink and the
// store-level stats collector. Metrics are owned by an explicit
// registry created at startup, never by package globals.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusSink records pipeline observations into a dedicated
// Prometheus registry. It satisfies the pipeline's MetricsSink interface.
type PrometheusSink struct {
	registry *prometheus.Registry

	questions          *prometheus.CounterVec
	questionDuration   *prometheus.HistogramVec
	guardRejections    *prometheus.CounterVec
	summarizerFailures prometheus.Counter
}

// NewPrometheusSink creates a sink with its own registry.
func NewPrometheusSink() *PrometheusSink {
	registry := prometheus.NewRegistry()

	s := &PrometheusSink{
		registry: registry,
		questions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_questions_total",
				Help: "Questions processed, by classified intent and terminal state",
			},
			[]string{"intent", "state"},
		),
		questionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "analytics_question_duration_seconds",
				Help: "End-to-end question processing duration in seconds",
			},
			[]string{"intent"},
		),
		guardRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_guard_rejections_total",
				Help: "Candidate queries rejected by the safety guard, by reason",
			},
			[]string{"reason"},
		),
		summarizerFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_summarizer_failures_total",
				Help: "Summarization collaborator failures (answers degraded to tabular-only)",
			},
		),
	}

	registry.MustRegister(s.questions, s.questionDuration, s.guardRejections, s.summarizerFailures)
	return s
}

// RecordQuestion counts one processed question and observes its duration.
func (s *PrometheusSink) RecordQuestion(intent, state string, duration time.Duration) {
	s.questions.WithLabelValues(intent, state).Inc()
	s.questionDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordGuardRejection counts one guard rejection by reason.
func (s *PrometheusSink) RecordGuardRejection(reason string) {
	s.guardRejections.WithLabelValues(reason).Inc()
}

// RecordSummarizerFailure counts one summarizer degradation.
func (s *PrometheusSink) RecordSummarizerFailure() {
	s.summarizerFailures.Inc()
}

// Handler returns the scrape endpoint handler for this sink's registry.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// NopSink discards all observations. Used by CLI one-shot commands
// where a scrape endpoint never exists.
type NopSink struct{}

func (NopSink) RecordQuestion(string, string, time.Duration) {}
func (NopSink) RecordGuardRejection(string)                  {}
func (NopSink) RecordSummarizerFailure()                     {}
