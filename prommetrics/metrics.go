// Package prommetrics exports daemon telemetry as Prometheus metrics.
package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/velmie/filetransfer"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "filetransfer"

// Metrics implements filetransfer.Metrics on a Prometheus registerer.
type Metrics struct {
	cycleDuration prometheus.Histogram
	selected      prometheus.Gauge
	transfers     *prometheus.CounterVec
	recordErrors  prometheus.Counter
	skipped       prometheus.Counter
	pending       prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var _ filetransfer.Metrics = (*Metrics)(nil)

// New registers the collectors on reg. An empty namespace uses DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		panic("filetransfer prommetrics: registerer is nil")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of transfer cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		selected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_selected_requests",
			Help:      "Requests selected by the last cycle.",
		}),
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers attempted, by result.",
		}, []string{"result"}),
		recordErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_record_failures_total",
			Help:      "Error records that could not be stored.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because another process held the lease.",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Pending transfer requests.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin API requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveCycleDuration implements filetransfer.Metrics.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	m.cycleDuration.Observe(duration.Seconds())
}

// SetSelected implements filetransfer.Metrics.
func (m *Metrics) SetSelected(count int) {
	m.selected.Set(float64(count))
}

// AddSucceeded implements filetransfer.Metrics.
func (m *Metrics) AddSucceeded(count int) {
	m.transfers.WithLabelValues("succeeded").Add(float64(count))
}

// AddFailed implements filetransfer.Metrics.
func (m *Metrics) AddFailed(count int) {
	m.transfers.WithLabelValues("failed").Add(float64(count))
}

// AddRecordErrors implements filetransfer.Metrics.
func (m *Metrics) AddRecordErrors(count int) {
	m.recordErrors.Add(float64(count))
}

// AddSkipped implements filetransfer.Metrics.
func (m *Metrics) AddSkipped(count int) {
	m.skipped.Add(float64(count))
}

// SetPending implements filetransfer.Metrics.
func (m *Metrics) SetPending(count int) {
	m.pending.Set(float64(count))
}

// ObserveHTTP records one admin API request. route must be the route pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
