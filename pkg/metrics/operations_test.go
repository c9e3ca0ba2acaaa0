package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestOperationMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperationMetrics(reg)

	m.Observe(OpTierCreate, time.Now().Add(-250*time.Millisecond), nil)
	m.Observe(OpTierCreate, time.Now(), pkgerrors.Persistence(errors.New("boom"), "insert_tier"))
	m.Observe(OpOverridesSave, time.Now(), errors.New("plain"))

	if got := testutil.ToFloat64(m.success.WithLabelValues(OpTierCreate)); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues(OpTierCreate, string(pkgerrors.CodePersistence))); got != 1 {
		t.Fatalf("expected persistence failure=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues(OpOverridesSave, string(pkgerrors.CodeInternal))); got != 1 {
		t.Fatalf("expected internal failure=1, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	sum, err := fetchHistogramSum(mfs, "allocations_operation_duration_seconds", "operation", OpTierCreate)
	if err != nil {
		t.Fatalf("fetch duration: %v", err)
	}
	if sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestOperationMetricsNilSafe(t *testing.T) {
	var m *OperationMetrics
	m.Observe(OpBundleSave, time.Now(), nil)
	NewOperationMetrics(nil).Observe("", time.Now(), errors.New("ignored"))
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetHistogram().GetSampleSum(), nil
				}
			}
		}
		return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
