package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the client metrics
type Metrics struct {
	// Exchange metrics, labelled by operation, method and status
	ExchangeTotal    *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec

	// Requests that failed before any network attempt
	BuildFailureTotal *prometheus.CounterVec

	// Event publishing metrics
	EventPublishTotal *prometheus.CounterVec

	// Journal write metrics
	JournalWriteTotal    *prometheus.CounterVec
	JournalWriteDuration *prometheus.HistogramVec
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide Metrics, registering it with the
// default registry on first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		ExchangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_exchanges_total",
			Help: "Total number of completed request exchanges",
		}, []string{"operation", "method", "status"}),

		ExchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "discovery_exchange_duration_seconds",
			Help:    "Request exchange duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "method", "status"}),

		BuildFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_build_failures_total",
			Help: "Total number of requests rejected before sending",
		}, []string{"operation", "code"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_event_publish_total",
			Help: "Total number of event publish operations",
		}, []string{"event_type", "status"}),

		JournalWriteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_journal_writes_total",
			Help: "Total number of exchange journal writes",
		}, []string{"backend", "status"}),

		JournalWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "discovery_journal_write_duration_seconds",
			Help:    "Exchange journal write duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "status"}),
	}

	m.ExchangeTotal = registerOrGet(m.ExchangeTotal).(*prometheus.CounterVec)
	m.ExchangeDuration = registerOrGet(m.ExchangeDuration).(*prometheus.HistogramVec)
	m.BuildFailureTotal = registerOrGet(m.BuildFailureTotal).(*prometheus.CounterVec)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal).(*prometheus.CounterVec)
	m.JournalWriteTotal = registerOrGet(m.JournalWriteTotal).(*prometheus.CounterVec)
	m.JournalWriteDuration = registerOrGet(m.JournalWriteDuration).(*prometheus.HistogramVec)

	globalMetrics = m
	return m
}

// Status reduces an outcome to a metric label: the HTTP status code, or
// "error" when no response arrived.
func Status(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
