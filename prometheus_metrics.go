package docbase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
// If registry is nil, a dedicated registry is created
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// Registry returns the underlying Prometheus registry for exposing via an HTTP handler
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// registerDefaultMetrics registers all standard docbase metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counters[MetricIndexHits] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "index",
			Name:      "hits_total",
			Help:      "Queries resolved through an index lookup",
		},
		[]string{"collection"},
	)

	p.counters[MetricIndexMisses] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "index",
			Name:      "misses_total",
			Help:      "Queries that fell back to a full collection scan",
		},
		[]string{"collection"},
	)

	p.counters[MetricCommitSuccess] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "commit",
			Name:      "success_total",
			Help:      "Committed collection mutations",
		},
		[]string{"collection", "operation"},
	)

	p.counters[MetricCommitError] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "commit",
			Name:      "errors_total",
			Help:      "Rejected collection mutations",
		},
		[]string{"collection", "operation"},
	)

	p.counters[MetricTransactionSuccess] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "transaction",
			Name:      "success_total",
			Help:      "Committed transactions",
		},
		nil,
	)

	p.counters[MetricTransactionRollback] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "transaction",
			Name:      "rollback_total",
			Help:      "Discarded transactions",
		},
		nil,
	)

	p.counters[MetricTransactionConflict] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "transaction",
			Name:      "conflict_total",
			Help:      "Transactions aborted by a concurrent commit",
		},
		nil,
	)

	p.counters[MetricHookSwallowed] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docbase",
			Subsystem: "hook",
			Name:      "swallowed_total",
			Help:      "After-hook failures swallowed without rolling back",
		},
		[]string{"collection"},
	)

	p.gauges[MetricNotifyQueue] = promauto.With(p.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docbase",
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Pending change notifications awaiting delivery",
		},
		nil,
	)

	p.histograms[MetricQueryDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docbase",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query execution latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	p.histograms[MetricQueryResults] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docbase",
			Subsystem: "query",
			Name:      "results",
			Help:      "Query result set sizes",
			Buckets:   []float64{0, 1, 10, 100, 1000, 10000},
		},
		[]string{"collection"},
	)
}

func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	if c, ok := p.counters[name]; ok {
		c.WithLabelValues(tagValues(tags)...).Inc()
	}
}

func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	if g, ok := p.gauges[name]; ok {
		g.WithLabelValues(tagValues(tags)...).Set(value)
	}
}

func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	if h, ok := p.histograms[name]; ok {
		h.WithLabelValues(tagValues(tags)...).Observe(value)
	}
}

func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// tagValues extracts label values from key-value tag pairs
func tagValues(tags []string) []string {
	values := make([]string, 0, len(tags)/2)
	for i := 1; i < len(tags); i += 2 {
		values = append(values, tags[i])
	}
	return values
}
