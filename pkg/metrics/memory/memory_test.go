package memory

import (
	"testing"
	"time"

	"ledger-core/pkg/metrics"
)

func TestMemoryCollector_Ledger(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordCommit("transfer", metrics.OutcomeSuccess, time.Second)
	mc.RecordCommit("transfer", metrics.OutcomeSuccess, time.Second)
	mc.RecordCommit("crypto", metrics.OutcomeRejected, 0)
	mc.RecordPinAttempt("login", metrics.OutcomeRejected)
	mc.RecordLockout("login")
	mc.RecordRegistration(metrics.OutcomeSuccess)
	mc.RecordLogin(metrics.OutcomeFailed)

	snap := mc.Snapshot()
	if snap.Ledger.Commits["transfer/success"] != 2 {
		t.Errorf("Expected 2 transfer commits, got %d", snap.Ledger.Commits["transfer/success"])
	}
	if snap.Ledger.Commits["crypto/rejected"] != 1 {
		t.Errorf("Expected 1 rejected crypto, got %d", snap.Ledger.Commits["crypto/rejected"])
	}
	if snap.Ledger.PinAttempts["login/rejected"] != 1 {
		t.Errorf("Expected 1 rejected PIN, got %d", snap.Ledger.PinAttempts["login/rejected"])
	}
	if snap.Ledger.Lockouts["login"] != 1 {
		t.Errorf("Expected 1 lockout, got %d", snap.Ledger.Lockouts["login"])
	}
	if snap.Ledger.Registrations["success"] != 1 || snap.Ledger.Logins["failed"] != 1 {
		t.Errorf("Expected registration and login counts, got %+v", snap.Ledger)
	}

	// Snapshots are copies.
	snap.Ledger.Commits["transfer/success"] = 99
	if mc.Snapshot().Ledger.Commits["transfer/success"] != 2 {
		t.Error("Expected snapshot mutation not to leak into the collector")
	}
}

func TestMemoryCollector_Layers(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordGet("L1", true, time.Millisecond)
	mc.RecordGet("L1", false, time.Millisecond)
	mc.RecordSet("L1", false, time.Millisecond)
	mc.RecordStoreError("L1", "set", "timeout")
	mc.RecordCircuitState("L1", metrics.CircuitOpen)
	mc.RecordCircuitState("L1", metrics.CircuitOpen)
	mc.RecordChainGet(true, 1, time.Millisecond)
	mc.RecordChainGet(false, -1, time.Millisecond)

	lm := mc.GetLayerMetrics("L1")
	if lm == nil {
		t.Fatal("Expected metrics for L1")
	}
	if lm.Hits != 1 || lm.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", lm.Hits, lm.Misses)
	}
	if lm.Errors != 1 || lm.ErrorsByType["timeout"] != 1 {
		t.Errorf("Expected 1 timeout error, got %+v", lm.ErrorsByType)
	}
	if lm.CircuitOpens != 1 {
		t.Errorf("Expected 1 circuit open, got %d", lm.CircuitOpens)
	}

	snap := mc.Snapshot()
	if snap.ChainHits != 1 || snap.ChainMisses != 1 || snap.ChainHitsByLayer[1] != 1 {
		t.Errorf("Expected chain counts 1/1, got %d/%d", snap.ChainHits, snap.ChainMisses)
	}

	if mc.GetLayerMetrics("missing") != nil {
		t.Error("Expected nil for unknown layer")
	}

	mc.Reset()
	if mc.GetLayerMetrics("L1") != nil {
		t.Error("Expected Reset to clear layers")
	}
}

func TestMemoryCollector_LatencySamplesBounded(t *testing.T) {
	mc := NewMemoryCollector()
	for i := 0; i < maxLatencySamples+10; i++ {
		mc.RecordGet("L1", true, time.Duration(i))
	}

	lm := mc.Snapshot().LayerMetrics["L1"]
	if len(lm.GetLatencies) != maxLatencySamples {
		t.Fatalf("Expected %d samples, got %d", maxLatencySamples, len(lm.GetLatencies))
	}
	if last := lm.GetLatencies[len(lm.GetLatencies)-1]; last != time.Duration(maxLatencySamples+9) {
		t.Errorf("Expected newest sample last, got %v", last)
	}
}
