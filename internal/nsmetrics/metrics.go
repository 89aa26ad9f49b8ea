// Package nsmetrics exposes Prometheus instrumentation for the
// namespace driver: per-operation call counts and latencies, plus two
// named failure modes worth tracking on their own — foreign-key
// violations and orphan tag-inode sweeps.
package nsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the driver and its collaborators
// report to. The zero value is not usable; construct with New and
// register the result with a prometheus.Registerer.
type Metrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	ForeignKeyViolations prometheus.Counter
	OrphanTagsSwept      prometheus.Counter
}

// New constructs a Metrics bundle. Callers register it with
// reg.MustRegister(m.Collectors()...).
func New() *Metrics {
	return &Metrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pnfsd",
			Subsystem: "driver",
			Name:      "operation_duration_seconds",
			Help:      "Latency of namespace driver operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnfsd",
			Subsystem: "driver",
			Name:      "operation_errors_total",
			Help:      "Count of namespace driver operations that returned an error, by operation and error kind.",
		}, []string{"op", "kind"}),
		ForeignKeyViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pnfsd",
			Subsystem: "driver",
			Name:      "foreign_key_violations_total",
			Help:      "Count of operations that failed with a translated ForeignKeyViolation.",
		}),
		OrphanTagsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pnfsd",
			Subsystem: "driver",
			Name:      "orphan_tags_swept_total",
			Help:      "Count of tag-inode rows removed by the orphan sweep on link removal.",
		}),
	}
}

// Collectors returns every collector in m, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.OperationDuration, m.OperationErrors, m.ForeignKeyViolations, m.OrphanTagsSwept}
}

// ObserveOperation records the outcome of one driver operation: its
// wall-clock duration and, on failure, its error kind.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error, kind string) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.OperationErrors.WithLabelValues(op, kind).Inc()
	}
}
