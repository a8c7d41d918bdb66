package metrics_test

import (
	"testing"
	"time"

	"ledger-core/pkg/metrics"
	"ledger-core/pkg/metrics/memory"
)

func TestMulti_FansOut(t *testing.T) {
	a := memory.NewMemoryCollector()
	b := memory.NewMemoryCollector()

	m := metrics.Multi(a, nil, b)
	m.RecordCommit("deposit", metrics.OutcomeSuccess, time.Millisecond)
	m.RecordGet("docs", true, time.Microsecond)

	for i, c := range []*memory.MemoryCollector{a, b} {
		snap := c.Snapshot()
		if snap.Ledger.Commits["deposit/success"] != 1 {
			t.Errorf("collector %d: Expected 1 commit, got %d", i, snap.Ledger.Commits["deposit/success"])
		}
		if snap.LayerMetrics["docs"].Hits != 1 {
			t.Errorf("collector %d: Expected 1 hit, got %d", i, snap.LayerMetrics["docs"].Hits)
		}
	}
}

func TestOrNoOp(t *testing.T) {
	if _, ok := metrics.OrNoOp(nil).(metrics.NoOpCollector); !ok {
		t.Error("Expected NoOpCollector for nil")
	}
	c := memory.NewMemoryCollector()
	if metrics.OrNoOp(c) != metrics.MetricsCollector(c) {
		t.Error("Expected the collector itself")
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state metrics.CircuitState
		want  string
	}{
		{metrics.CircuitClosed, "closed"},
		{metrics.CircuitOpen, "open"},
		{metrics.CircuitHalfOpen, "half-open"},
		{metrics.CircuitState(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}
