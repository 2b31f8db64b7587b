package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a batch run.
type Metrics struct {
	ConversionsSucceeded prometheus.Counter
	ConversionsFailed    *prometheus.CounterVec // labels: kind={input,structural,repair,validation,timeout,internal}
	ConversionDuration   prometheus.Histogram
	BatchRunning         prometheus.Gauge
	BatchPending         prometheus.Gauge

	// Gap repair metrics.
	GapRepairs *prometheus.CounterVec // labels: field, outcome={interpolated,imputed,unrepairable}

	// Feed loader cache metrics.
	LoaderCache *prometheus.CounterVec // labels: result={hit,miss}

	// Result publishing metrics.
	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all batch metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ConversionsSucceeded,
		m.ConversionsFailed,
		m.ConversionDuration,
		m.BatchRunning,
		m.BatchPending,
		m.GapRepairs,
		m.LoaderCache,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ConversionsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amy_epw",
			Name:      "conversions_succeeded_total",
			Help:      "Station-years converted to an EPW file.",
		}),
		ConversionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amy_epw",
			Name:      "conversions_failed_total",
			Help:      "Station-years that could not be converted, by failure kind.",
		}, []string{"kind"}),
		ConversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amy_epw",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of a single station-year load, repair, and write.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "amy_epw",
			Name:      "batch_running",
			Help:      "1 while a batch is running, 0 otherwise.",
		}),
		BatchPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "amy_epw",
			Name:      "batch_pending",
			Help:      "Station-years not yet converted in the current batch.",
		}),
		GapRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amy_epw",
			Name:      "gap_repairs_total",
			Help:      "Gaps classified by field and repair outcome.",
		}, []string{"field", "outcome"}),
		LoaderCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amy_epw",
			Name:      "loader_cache_total",
			Help:      "Feed cache lookups by result.",
		}, []string{"result"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amy_epw",
			Name:      "publish_errors_total",
			Help:      "Conversion results that could not be published.",
		}),
	}
}
