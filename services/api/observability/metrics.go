package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sealevel_api"

// Metrics holds the Prometheus collectors for the API.
type Metrics struct {
	Requests        *prometheus.CounterVec   // labels: endpoint, level
	RequestDuration *prometheus.HistogramVec // labels: endpoint
	RequestErrors   *prometheus.CounterVec   // labels: endpoint, kind={invalid,not_found,store}

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}
	CacheErrors  *prometheus.CounterVec // labels: op={get,set}

	StoreReadDuration *prometheus.HistogramVec // labels: level
	RowsReturned      prometheus.Histogram
	OutliersFlagged   *prometheus.CounterVec // labels: strategy
}

func newCollectors() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Data requests by endpoint and selected resolution level.",
		}, []string{"endpoint", "level"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Failed requests by endpoint and error kind.",
		}, []string{"endpoint", "kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache backend failures treated as a miss or no-op.",
		}, []string{"op"}),
		StoreReadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_read_duration_seconds",
			Help:      "Duration of the single store read per request.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"level"}),
		RowsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rows_returned",
			Help:      "Records per response.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
		OutliersFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outliers_flagged_total",
			Help:      "Readings flagged as outliers by strategy.",
		}, []string{"strategy"}),
	}
}

// NewMetrics creates and registers all API metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.RequestErrors,
		m.CacheLookups,
		m.CacheErrors,
		m.StoreReadDuration,
		m.RowsReturned,
		m.OutliersFlagged,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}
