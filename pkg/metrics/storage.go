// Prometheus instrumentation for object store operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageObserver receives one call per finished store operation.
type StorageObserver interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// StorageMetrics holds the Prometheus collectors for store operations.
type StorageMetrics struct {
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewStorageMetrics registers the store collectors on reg.
func NewStorageMetrics(reg prometheus.Registerer) *StorageMetrics {
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3store",
		Subsystem: "storage",
		Name:      "bytes_total",
		Help:      "Total bytes sent or received by store operations.",
	}, []string{"op"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3store",
		Subsystem: "storage",
		Name:      "ops_total",
		Help:      "Total number of store operations by result.",
	}, []string{"op", "result"}) // result = "ok" | "error"
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "s3store",
		Subsystem: "storage",
		Name:      "op_duration_seconds",
		Help:      "Histogram of store operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	_ = reg.Register(bytes)
	_ = reg.Register(ops)
	_ = reg.Register(latency)

	return &StorageMetrics{
		bytes:   bytes,
		ops:     ops,
		latency: latency,
	}
}

// Observe records a finished operation. dur must cover the whole call.
func (m *StorageMetrics) Observe(op string, bytes int64, err error, dur time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}

type nopObserver struct{}

func (nopObserver) Observe(string, int64, error, time.Duration) {}

// Nop is an observer that discards everything.
var Nop StorageObserver = nopObserver{}
