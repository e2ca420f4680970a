package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RowsExtracted  *prometheus.CounterVec // labels: channel={market,online,crypto,pos}
	RowsAccepted   *prometheus.CounterVec // labels: channel={market,online,crypto,pos}
	RowsRejected   *prometheus.CounterVec // labels: channel={market,online,crypto,pos}
	MalformedFiles prometheus.Counter
	RunsActive     prometheus.Gauge

	// Run and load metrics.
	LoadBatchSize prometheus.Histogram
	RunDuration   *prometheus.HistogramVec // labels: channel={market,online,crypto,pos}

	// Weather enrichment metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_etl",
			Name:      "rows_extracted_total",
			Help:      "Total raw rows extracted from a sales channel.",
		}, []string{"channel"}),
		RowsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_etl",
			Name:      "rows_accepted_total",
			Help:      "Total rows transformed into canonical transactions.",
		}, []string{"channel"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_etl",
			Name:      "rows_rejected_total",
			Help:      "Total rows dropped by validation during transform.",
		}, []string{"channel"}),
		MalformedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "retail_etl",
			Name:      "malformed_files_total",
			Help:      "Total market spreadsheets skipped for unparseable names or content.",
		}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "retail_etl",
			Name:      "runs_active",
			Help:      "Number of channel runs currently executing.",
		}),
		LoadBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "retail_etl",
			Name:      "load_batch_size",
			Help:      "Number of transactions per load batch written to Postgres.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "retail_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete channel extract-transform-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"channel"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_etl",
			Name:      "geocode_requests_total",
			Help:      "Nominatim geocoding requests by outcome.",
		}, []string{"outcome"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_etl",
			Name:      "weather_requests_total",
			Help:      "Open-Meteo archive requests by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "retail_etl",
			Name:      "weather_api_duration_seconds",
			Help:      "Open-Meteo archive request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.RowsExtracted,
		m.RowsAccepted,
		m.RowsRejected,
		m.MalformedFiles,
		m.RunsActive,
		m.LoadBatchSize,
		m.RunDuration,
		m.GeocodeRequests,
		m.WeatherRequests,
		m.WeatherAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsExtracted:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_etl", Name: "rows_extracted_total"}, []string{"channel"}),
		RowsAccepted:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_etl", Name: "rows_accepted_total"}, []string{"channel"}),
		RowsRejected:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_etl", Name: "rows_rejected_total"}, []string{"channel"}),
		MalformedFiles:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "retail_etl", Name: "malformed_files_total"}),
		RunsActive:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "retail_etl", Name: "runs_active"}),
		LoadBatchSize:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "retail_etl", Name: "load_batch_size"}),
		RunDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "retail_etl", Name: "run_duration_seconds"}, []string{"channel"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_etl", Name: "geocode_requests_total"}, []string{"outcome"}),
		WeatherRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_etl", Name: "weather_requests_total"}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "retail_etl", Name: "weather_api_duration_seconds"}),
	}
}
