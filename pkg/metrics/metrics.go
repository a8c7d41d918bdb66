package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting ledger metrics.
// It covers the document store tiers underneath the ledger as well as the
// ledger operations themselves.
type MetricsCollector interface {
	// Store layer operations
	RecordGet(layer string, hit bool, duration time.Duration)
	RecordSet(layer string, success bool, duration time.Duration)
	RecordDelete(layer string, success bool, duration time.Duration)
	RecordStoreError(layer, operation, errorType string)

	// Circuit breaker
	RecordCircuitState(layer string, state CircuitState)

	// Async warm-up writer
	RecordQueueDepth(layer string, depth int)
	RecordWriteDropped(layer string)
	RecordAsyncWrite(layer string, success bool, duration time.Duration)

	// Chain-level
	RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration)

	// Ledger
	RecordCommit(kind string, outcome string, duration time.Duration)
	RecordPinAttempt(purpose string, outcome string)
	RecordLockout(purpose string)
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Outcome labels shared by the ledger components.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// NoOpCollector is a no-op implementation of MetricsCollector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordGet(layer string, hit bool, duration time.Duration)             {}
func (NoOpCollector) RecordSet(layer string, success bool, duration time.Duration)         {}
func (NoOpCollector) RecordDelete(layer string, success bool, duration time.Duration)      {}
func (NoOpCollector) RecordStoreError(layer, operation, errorType string)                  {}
func (NoOpCollector) RecordCircuitState(layer string, state CircuitState)                  {}
func (NoOpCollector) RecordQueueDepth(layer string, depth int)                             {}
func (NoOpCollector) RecordWriteDropped(layer string)                                      {}
func (NoOpCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration)  {}
func (NoOpCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {}
func (NoOpCollector) RecordCommit(kind string, outcome string, duration time.Duration)     {}
func (NoOpCollector) RecordPinAttempt(purpose string, outcome string)                      {}
func (NoOpCollector) RecordLockout(purpose string)                                         {}
func (NoOpCollector) RecordRegistration(outcome string)                                    {}
func (NoOpCollector) RecordLogin(outcome string)                                           {}

// OrNoOp returns c, or a NoOpCollector when c is nil.
func OrNoOp(c MetricsCollector) MetricsCollector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
