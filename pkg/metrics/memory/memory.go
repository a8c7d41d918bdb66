package memory

import (
	"sync"
	"time"

	"ledger-core/pkg/metrics"
)

// maxLatencySamples bounds the latency history kept per layer.
const maxLatencySamples = 1024

// MemoryCollector implements MetricsCollector in memory. It backs the
// JSON metrics endpoint and the tests.
type MemoryCollector struct {
	mu sync.RWMutex

	layerMetrics map[string]*LayerMetrics

	chainHits        int64
	chainMisses      int64
	chainHitsByLayer map[int]int64

	ledger LedgerMetrics
}

// LayerMetrics holds metrics for a single store layer.
type LayerMetrics struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Errors  int64

	// ErrorsByType is keyed by store.ClassifyError labels.
	ErrorsByType map[string]int64

	CircuitState metrics.CircuitState
	CircuitOpens int64

	QueueDepth    int
	DroppedWrites int64
	AsyncWrites   int64
	AsyncErrors   int64

	GetLatencies []time.Duration
	SetLatencies []time.Duration
}

// LedgerMetrics holds counters for ledger operations, keyed by label.
type LedgerMetrics struct {
	// Commits is keyed by "kind/outcome".
	Commits map[string]int64
	// PinAttempts is keyed by "purpose/outcome".
	PinAttempts   map[string]int64
	Lockouts      map[string]int64
	Registrations map[string]int64
	Logins        map[string]int64
}

func newLedgerMetrics() LedgerMetrics {
	return LedgerMetrics{
		Commits:       make(map[string]int64),
		PinAttempts:   make(map[string]int64),
		Lockouts:      make(map[string]int64),
		Registrations: make(map[string]int64),
		Logins:        make(map[string]int64),
	}
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		layerMetrics:     make(map[string]*LayerMetrics),
		chainHitsByLayer: make(map[int]int64),
		ledger:           newLedgerMetrics(),
	}
}

// layer returns the LayerMetrics for name; mc.mu must be held for writing.
func (mc *MemoryCollector) layer(name string) *LayerMetrics {
	lm, ok := mc.layerMetrics[name]
	if !ok {
		lm = &LayerMetrics{ErrorsByType: make(map[string]int64)}
		mc.layerMetrics[name] = lm
	}
	return lm
}

// RecordGet records a store get operation.
func (mc *MemoryCollector) RecordGet(layer string, hit bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	if hit {
		lm.Hits++
	} else {
		lm.Misses++
	}
	lm.GetLatencies = appendSample(lm.GetLatencies, duration)
}

// RecordSet records a store set operation.
func (mc *MemoryCollector) RecordSet(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Sets++
	if !success {
		lm.Errors++
	}
	lm.SetLatencies = appendSample(lm.SetLatencies, duration)
}

// RecordDelete records a store delete operation.
func (mc *MemoryCollector) RecordDelete(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.Deletes++
	if !success {
		lm.Errors++
	}
}

// RecordStoreError records an error by type.
func (mc *MemoryCollector) RecordStoreError(layer, operation, errorType string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.layer(layer).ErrorsByType[errorType]++
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(layer string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	if lm.CircuitState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		lm.CircuitOpens++
	}
	lm.CircuitState = state
}

// RecordQueueDepth records the current async writer queue depth.
func (mc *MemoryCollector) RecordQueueDepth(layer string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.layer(layer).QueueDepth = depth
}

// RecordWriteDropped records a dropped async write.
func (mc *MemoryCollector) RecordWriteDropped(layer string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.layer(layer).DroppedWrites++
}

// RecordAsyncWrite records an async write operation.
func (mc *MemoryCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	lm := mc.layer(layer)
	lm.AsyncWrites++
	if !success {
		lm.AsyncErrors++
	}
}

// RecordChainGet records a chain-level get operation.
func (mc *MemoryCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if hit {
		mc.chainHits++
		mc.chainHitsByLayer[layerIndex]++
	} else {
		mc.chainMisses++
	}
}

// RecordCommit records the outcome of a transaction commit attempt.
func (mc *MemoryCollector) RecordCommit(kind string, outcome string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ledger.Commits[kind+"/"+outcome]++
}

// RecordPinAttempt records a PIN verification attempt.
func (mc *MemoryCollector) RecordPinAttempt(purpose string, outcome string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ledger.PinAttempts[purpose+"/"+outcome]++
}

// RecordLockout records a transition into the locked state.
func (mc *MemoryCollector) RecordLockout(purpose string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ledger.Lockouts[purpose]++
}

// RecordRegistration records a registration attempt.
func (mc *MemoryCollector) RecordRegistration(outcome string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ledger.Registrations[outcome]++
}

// RecordLogin records a password login attempt.
func (mc *MemoryCollector) RecordLogin(outcome string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ledger.Logins[outcome]++
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	LayerMetrics     map[string]LayerMetrics
	ChainHits        int64
	ChainMisses      int64
	ChainHitsByLayer map[int]int64
	Ledger           LedgerMetrics
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		LayerMetrics:     make(map[string]LayerMetrics, len(mc.layerMetrics)),
		ChainHits:        mc.chainHits,
		ChainMisses:      mc.chainMisses,
		ChainHitsByLayer: make(map[int]int64, len(mc.chainHitsByLayer)),
		Ledger:           newLedgerMetrics(),
	}

	for name, lm := range mc.layerMetrics {
		cp := *lm
		cp.ErrorsByType = copyCounts(lm.ErrorsByType)
		cp.GetLatencies = append([]time.Duration(nil), lm.GetLatencies...)
		cp.SetLatencies = append([]time.Duration(nil), lm.SetLatencies...)
		snapshot.LayerMetrics[name] = cp
	}
	for idx, hits := range mc.chainHitsByLayer {
		snapshot.ChainHitsByLayer[idx] = hits
	}

	snapshot.Ledger.Commits = copyCounts(mc.ledger.Commits)
	snapshot.Ledger.PinAttempts = copyCounts(mc.ledger.PinAttempts)
	snapshot.Ledger.Lockouts = copyCounts(mc.ledger.Lockouts)
	snapshot.Ledger.Registrations = copyCounts(mc.ledger.Registrations)
	snapshot.Ledger.Logins = copyCounts(mc.ledger.Logins)

	return snapshot
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.layerMetrics = make(map[string]*LayerMetrics)
	mc.chainHits = 0
	mc.chainMisses = 0
	mc.chainHitsByLayer = make(map[int]int64)
	mc.ledger = newLedgerMetrics()
}

// GetLayerMetrics returns a copy of the metrics for a specific layer, or nil.
func (mc *MemoryCollector) GetLayerMetrics(layer string) *LayerMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	lm, ok := mc.layerMetrics[layer]
	if !ok {
		return nil
	}
	cp := *lm
	cp.ErrorsByType = copyCounts(lm.ErrorsByType)
	return &cp
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	if len(samples) >= maxLatencySamples {
		samples = append(samples[:0], samples[len(samples)-maxLatencySamples+1:]...)
	}
	return append(samples, d)
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
