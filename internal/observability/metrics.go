package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crisisfeed"

// Metrics holds the Prometheus collectors for the aggregation pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AdapterFetches       *prometheus.CounterVec   // labels: source, outcome={success,timeout,unavailable,parse_failure,not_configured}
	AdapterFetchDuration *prometheus.HistogramVec // labels: source
	CacheLookups         *prometheus.CounterVec   // labels: service, result={hit,miss,expired}
	Fallbacks            *prometheus.CounterVec   // labels: service
	RecordsDropped       *prometheus.CounterVec   // labels: source
	RecordsReturned      *prometheus.HistogramVec // labels: service
}

func newCollectors(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdapterFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_fetch_total",
			Help:      "Adapter fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		AdapterFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_fetch_duration_seconds",
			Help:      "Adapter fetch duration in seconds, including timeouts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by service and result.",
		}, []string{"service", "result"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Aggregations answered by the synthetic fallback.",
		}, []string{"service"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Raw records dropped during normalization.",
		}, []string{"source"}),
		RecordsReturned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_returned",
			Help:      "Records returned per aggregation call.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}, []string{"service"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.AdapterFetches,
			m.AdapterFetchDuration,
			m.CacheLookups,
			m.Fallbacks,
			m.RecordsDropped,
			m.RecordsReturned,
		)
	}
	return m
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return newCollectors(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newCollectors(nil)
}

// ObserveFetch records one adapter call
func (m *Metrics) ObserveFetch(source, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.AdapterFetches.WithLabelValues(source, outcome).Inc()
	m.AdapterFetchDuration.WithLabelValues(source).Observe(seconds)
}

// CacheLookup records a cache hit, miss or expiry
func (m *Metrics) CacheLookup(service, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(service, result).Inc()
}

// Fallback records a synthetic fallback
func (m *Metrics) Fallback(service string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(service).Inc()
}

// Dropped records records dropped during normalization
func (m *Metrics) Dropped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsDropped.WithLabelValues(source).Add(float64(n))
}

// Returned records the size of a result
func (m *Metrics) Returned(service string, n int) {
	if m == nil {
		return
	}
	m.RecordsReturned.WithLabelValues(service).Observe(float64(n))
}
