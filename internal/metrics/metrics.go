// Package metrics provides Prometheus self-instrumentation for the improvement core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the core.
type Metrics struct {
	SessionsAnalyzed *prometheus.CounterVec
	PainPointsTotal  *prometheus.CounterVec
	SuggestionsTotal *prometheus.CounterVec
	SourceQueries    *prometheus.CounterVec
	SourceLatency    *prometheus.HistogramVec
	ReflectionRuns   *prometheus.CounterVec
	ReportsGenerated prometheus.Counter
	DroppedUnits     *prometheus.CounterVec
	KnowledgeLookups *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsAnalyzed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_sessions_analyzed_total",
				Help: "Sessions consumed by the analyzer, by outcome.",
			},
			[]string{"outcome"}, // analyzed, invalid, duplicate, failed
		),
		PainPointsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_pain_points_total",
				Help: "Pain points derived from sessions, by category.",
			},
			[]string{"category"},
		),
		SuggestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_suggestions_total",
				Help: "Suggestions created, by origin and category.",
			},
			[]string{"origin", "category"}, // origin: synthesis, reuse, fallback, reflection
		),
		SourceQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_source_queries_total",
				Help: "External source queries, by source and status.",
			},
			[]string{"source", "status"}, // status: ok, timeout, error
		),
		SourceLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insight_source_query_duration_seconds",
				Help:    "External source query duration by source.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		ReflectionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_reflection_runs_total",
				Help: "Reflection engine runs, by outcome.",
			},
			[]string{"outcome"}, // completed, skipped, failed
		),
		ReportsGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "insight_reports_generated_total",
				Help: "Daily reports generated.",
			},
		),
		DroppedUnits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_dropped_units_total",
				Help: "Units of work dropped after retry exhaustion, by kind.",
			},
			[]string{"kind"},
		),
		KnowledgeLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_knowledge_lookups_total",
				Help: "Knowledge store lookups, by result.",
			},
			[]string{"result"}, // hit, miss, reused
		),
		registry: reg,
	}

	reg.MustRegister(m.SessionsAnalyzed)
	reg.MustRegister(m.PainPointsTotal)
	reg.MustRegister(m.SuggestionsTotal)
	reg.MustRegister(m.SourceQueries)
	reg.MustRegister(m.SourceLatency)
	reg.MustRegister(m.ReflectionRuns)
	reg.MustRegister(m.ReportsGenerated)
	reg.MustRegister(m.DroppedUnits)
	reg.MustRegister(m.KnowledgeLookups)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
