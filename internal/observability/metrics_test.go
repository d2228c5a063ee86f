package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// Register is process-wide (sync.Once-guarded), so all assertions about it
// live in a single test function to avoid fighting over which call wins the
// race to actually register against its registry.
func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1 := Register(reg)
	m2 := Register(reg)
	if m1 != m2 {
		t.Error("want Register to return the same instance across calls")
	}

	m1.PreviewCreatedTotal.Inc()
	m1.PreviewActive.Set(2)
	m1.RolloutsTotal.WithLabelValues("canary", "succeeded").Inc()
	m1.RolloutStepLatency.Observe(45)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("want at least one registered metric family")
	}
}
