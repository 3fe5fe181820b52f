package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Global metrics instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the sync engine
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics (reference sync server)
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Recorder metrics
	RecorderRuns         prometheus.Counter
	TransactionsRecorded prometheus.Counter

	// Sync metrics
	PushBatches        prometheus.Counter
	PushFailures       prometheus.Counter
	PulledTransactions prometheus.Counter
	MergeConflicts     prometheus.Counter
	Compactions        prometheus.Counter

	// Store metrics
	StoreOperations *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	// Use singleton pattern to avoid duplicate registration in tests
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	recorderRuns := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_runs_total",
			Help:      "Total number of mutation recorder invocations",
		},
	)

	transactionsRecorded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "Total number of transactions appended by the recorder",
		},
	)

	pushBatches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_batches_total",
			Help:      "Total number of successful push sync batches",
		},
	)

	pushFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Total number of failed push sync attempts",
		},
	)

	pulledTransactions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulled_transactions_total",
			Help:      "Total number of remote transactions merged by polling",
		},
	)

	mergeConflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_conflicts_total",
			Help:      "Total number of merges degraded to remote-wins",
		},
	)

	compactions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Total number of version compactions",
		},
	)

	storeOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of state store operations",
		},
		[]string{"operation", "status"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		recorderRuns,
		transactionsRecorded,
		pushBatches,
		pushFailures,
		pulledTransactions,
		mergeConflicts,
		compactions,
		storeOperations,
	)

	globalCollector = &Collector{
		registry:             registry,
		HTTPRequests:         httpRequests,
		HTTPDuration:         httpDuration,
		RecorderRuns:         recorderRuns,
		TransactionsRecorded: transactionsRecorded,
		PushBatches:          pushBatches,
		PushFailures:         pushFailures,
		PulledTransactions:   pulledTransactions,
		MergeConflicts:       mergeConflicts,
		Compactions:          compactions,
		StoreOperations:      storeOperations,
	}

	return globalCollector
}

// Registry returns the Prometheus registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
