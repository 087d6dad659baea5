package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	// Render pipeline metrics.
	RenderRequests    prometheus.Counter
	RenderRuns        prometheus.Counter
	RenderRunDuration prometheus.Histogram
	FilteredRecords   prometheus.Gauge
	MarkersPlaced     prometheus.Gauge

	// Dataset metrics.
	DatasetLoads     *prometheus.CounterVec // labels: outcome={success,error}
	DatasetRecords   prometheus.Gauge
	MalformedRecords prometheus.Counter

	// Algorithm execution metrics.
	AlgorithmRuns     *prometheus.CounterVec   // labels: algorithm, outcome={success,error}
	AlgorithmDuration *prometheus.HistogramVec // labels: algorithm

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge

	// Run event publishing.
	RunEventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RenderRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_requests_total",
			Help:      "Filter-state changes that requested a redraw.",
		}),
		RenderRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_runs_total",
			Help:      "Completed filter-rank-render pipeline runs.",
		}),
		RenderRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_run_duration_seconds",
			Help:      "Duration of a filter-rank-render pipeline run.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		FilteredRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filtered_records",
			Help:      "Records passing the current filter.",
		}),
		MarkersPlaced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markers_placed",
			Help:      "Markers currently placed on the map.",
		}),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset fetches by outcome.",
		}, []string{"outcome"}),
		DatasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Records in the cached dataset.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_malformed_records_total",
			Help:      "Records skipped at load for missing or non-finite fields.",
		}),
		AlgorithmRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "algorithm_runs_total",
			Help:      "Dataset generation runs by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		AlgorithmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "algorithm_duration_seconds",
			Help:      "Dataset generation run duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"algorithm"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when missing states are resolved by geocoding, 0 otherwise.",
		}),
		RunEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_events_published_total",
			Help:      "Generation run events published by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RenderRequests,
		m.RenderRuns,
		m.RenderRunDuration,
		m.FilteredRecords,
		m.MarkersPlaced,
		m.DatasetLoads,
		m.DatasetRecords,
		m.MalformedRecords,
		m.AlgorithmRuns,
		m.AlgorithmDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
		m.RunEventsPublished,
	}
}
