package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instrumentation for the analysis API.
type Metrics struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	subjectsAnalyzed prometheus.Counter
	subjectsFailed   prometheus.Counter
	analysisDuration prometheus.Histogram
}

// NewMetrics creates the metric set on its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nca_analyses_total",
			Help: "Total population analysis requests by outcome.",
		}, []string{"status"}),
		subjectsAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Name: "nca_subjects_analyzed_total",
			Help: "Total subjects successfully analyzed.",
		}),
		subjectsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "nca_subjects_failed_total",
			Help: "Total subjects excluded from analysis.",
		}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nca_analysis_duration_seconds",
			Help:    "Population analysis wall time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeAnalysis(status string, analyzed, failed int, seconds float64) {
	m.analysesTotal.WithLabelValues(status).Inc()
	m.subjectsAnalyzed.Add(float64(analyzed))
	m.subjectsFailed.Add(float64(failed))
	m.analysisDuration.Observe(seconds)
}
