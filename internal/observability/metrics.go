package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reservoir_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for acquisition and reporting.
type Metrics struct {
	// Acquisition metrics.
	FetchRequests       *prometheus.CounterVec // labels: outcome={success,network_error,decode_error,empty}
	FetchDuration       prometheus.Histogram
	FetchRetries        prometheus.Counter
	ObservationsDecoded prometheus.Counter
	ChroniclesWritten   prometheus.Counter
	AcquisitionRuns     *prometheus.CounterVec // labels: outcome={success,error}
	AcquisitionRunning  prometheus.Gauge

	// Reporting metrics.
	StationsSynthesized prometheus.Counter
	SynthesisCache      *prometheus.CounterVec // labels: result={hit,miss}
	SnapshotLoadedAt    prometheus.Gauge
	ReportsPublished    *prometheus.CounterVec // labels: sink={kafka,sqlite}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.FetchRetries,
		m.ObservationsDecoded,
		m.ChroniclesWritten,
		m.AcquisitionRuns,
		m.AcquisitionRunning,
		m.StationsSynthesized,
		m.SynthesisCache,
		m.SnapshotLoadedAt,
		m.ReportsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Webservice requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Webservice request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts repeated by the retry policy.",
		}),
		ObservationsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_decoded_total",
			Help:      "Observations decoded from SANDRE payloads.",
		}),
		ChroniclesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chronicles_written_total",
			Help:      "Chronicle files written.",
		}),
		AcquisitionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_runs_total",
			Help:      "Acquisition runs by outcome.",
		}, []string{"outcome"}),
		AcquisitionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acquisition_running",
			Help:      "1 while an acquisition run is in progress.",
		}),
		StationsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_synthesized_total",
			Help:      "Synthesis rows computed.",
		}),
		SynthesisCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_cache_total",
			Help:      "Synthesis cache lookups by result.",
		}, []string{"result"}),
		SnapshotLoadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_loaded_timestamp_seconds",
			Help:      "Unix time of the last canonical snapshot load.",
		}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Reports published by sink.",
		}, []string{"sink"}),
	}
}
