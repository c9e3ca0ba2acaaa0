package metrics

import (
	"time"

	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels recorded by the services.
const (
	OpTierCreate    = "tier.create"
	OpTierDelete    = "tier.delete"
	OpOverridesSave = "overrides.save"
	OpBundleSave    = "bundle.save"
)

// OperationMetrics records latency and outcome of mutating operations.
type OperationMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewOperationMetrics registers the operation metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocations_operation_duration_seconds",
		Help:    "Duration of mutating allocation operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocations_operation_success_total",
		Help: "Successful allocation operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocations_operation_failure_total",
		Help: "Failed allocation operations by error code.",
	}, []string{"operation", "code"})
	reg.MustRegister(duration, success, failure)
	return &OperationMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// Observe records one finished operation. Call it deferred with the start time.
func (m *OperationMetrics) Observe(op string, started time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	op = normalizeLabel(op)
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err == nil {
		m.success.WithLabelValues(op).Inc()
		return
	}
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	m.failure.WithLabelValues(op, string(code)).Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
