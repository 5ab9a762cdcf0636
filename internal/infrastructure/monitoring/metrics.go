package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "partloader"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	SharedWaits   prometheus.Counter

	// Resolution metrics
	Resolutions *prometheus.CounterVec

	// Status server metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the metrics on reg. A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Artifact fetches by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Artifact fetch duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"kind"},
		),
		SharedWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shared_waits_total",
				Help:      "Requests that joined a bundle fetch already in flight",
			},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Code unit resolutions by outcome",
			},
			[]string{"outcome"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Status server requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Status server request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one artifact fetch
func (m *Metrics) ObserveFetch(kind string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.FetchesTotal.WithLabelValues(kind, outcome).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveResolution records one resolution outcome
func (m *Metrics) ObserveResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// ObserveSharedWait records a request joining an in-flight fetch
func (m *Metrics) ObserveSharedWait() {
	m.SharedWaits.Inc()
}

// RecordHTTPRequest records a status server request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackBundles exposes the bundle count per download state, read from
// counts on every scrape
func (m *Metrics) TrackBundles(counts func() map[string]int) error {
	return m.registry.Register(&bundleCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bundles"),
			"Live bundles by download state",
			[]string{"state"}, nil,
		),
		counts: counts,
	})
}

type bundleCollector struct {
	desc   *prometheus.Desc
	counts func() map[string]int
}

func (c *bundleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *bundleCollector) Collect(ch chan<- prometheus.Metric) {
	for state, n := range c.counts() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), state)
	}
}
