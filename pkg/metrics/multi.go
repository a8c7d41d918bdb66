package metrics

import "time"

type multiCollector []MetricsCollector

// Multi returns a collector that records to every non-nil collector in cs.
func Multi(cs ...MetricsCollector) MetricsCollector {
	var m multiCollector
	for _, c := range cs {
		if c != nil {
			m = append(m, c)
		}
	}
	return m
}

func (m multiCollector) RecordGet(layer string, hit bool, duration time.Duration) {
	for _, c := range m {
		c.RecordGet(layer, hit, duration)
	}
}

func (m multiCollector) RecordSet(layer string, success bool, duration time.Duration) {
	for _, c := range m {
		c.RecordSet(layer, success, duration)
	}
}

func (m multiCollector) RecordDelete(layer string, success bool, duration time.Duration) {
	for _, c := range m {
		c.RecordDelete(layer, success, duration)
	}
}

func (m multiCollector) RecordStoreError(layer, operation, errorType string) {
	for _, c := range m {
		c.RecordStoreError(layer, operation, errorType)
	}
}

func (m multiCollector) RecordCircuitState(layer string, state CircuitState) {
	for _, c := range m {
		c.RecordCircuitState(layer, state)
	}
}

func (m multiCollector) RecordQueueDepth(layer string, depth int) {
	for _, c := range m {
		c.RecordQueueDepth(layer, depth)
	}
}

func (m multiCollector) RecordWriteDropped(layer string) {
	for _, c := range m {
		c.RecordWriteDropped(layer)
	}
}

func (m multiCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	for _, c := range m {
		c.RecordAsyncWrite(layer, success, duration)
	}
}

func (m multiCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	for _, c := range m {
		c.RecordChainGet(hit, layerIndex, totalDuration)
	}
}

func (m multiCollector) RecordCommit(kind string, outcome string, duration time.Duration) {
	for _, c := range m {
		c.RecordCommit(kind, outcome, duration)
	}
}

func (m multiCollector) RecordPinAttempt(purpose string, outcome string) {
	for _, c := range m {
		c.RecordPinAttempt(purpose, outcome)
	}
}

func (m multiCollector) RecordLockout(purpose string) {
	for _, c := range m {
		c.RecordLockout(purpose)
	}
}

func (m multiCollector) RecordRegistration(outcome string) {
	for _, c := range m {
		c.RecordRegistration(outcome)
	}
}

func (m multiCollector) RecordLogin(outcome string) {
	for _, c := range m {
		c.RecordLogin(outcome)
	}
}

// Unwrap returns the collectors m fans out to.
func (m multiCollector) Unwrap() []MetricsCollector {
	return m
}
