// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coffeetime"

// Status label values.
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusNoop   = "noop"
	StatusFailed = "failed"
)

var (
	// JournalOperations counts data manager operations by outcome.
	JournalOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "journal",
		Name:      "operations_total",
		Help:      "Journal operations by operation and status.",
	}, []string{"operation", "status"})

	// JournalCoffees is the number of coffees in the last loaded snapshot.
	JournalCoffees = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "journal",
		Name:      "coffees",
		Help:      "Coffees held in the journal cache.",
	})

	// StorageBackend is 1 for the backend selected at startup.
	StorageBackend = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "backend",
		Help:      "Storage backend selected at startup.",
	}, []string{"kind"})

	// StorageAttempts counts selector steps by outcome.
	StorageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "open_attempts_total",
		Help:      "Storage open attempts by step and status.",
	}, []string{"step", "status"})

	// SyncRuns counts remote sync passes by outcome.
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Remote sync passes by status.",
	}, []string{"status"})

	// SyncRecords counts records pushed or pulled.
	SyncRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Records exchanged with the remote repository.",
	}, []string{"direction"})

	// BackupOperations counts backup creates and restores.
	BackupOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "operations_total",
		Help:      "Backup operations by operation and status.",
	}, []string{"operation", "status"})

	// HTTPRequests counts served requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "code"})

	// HTTPDuration observes request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)
