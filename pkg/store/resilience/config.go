package resilience

import (
	"time"
)

// Config configures the protection applied to one store layer.
type Config struct {
	// Timeout bounds every operation. 0 disables it.
	Timeout time.Duration `yaml:"timeout"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig maps onto gobreaker.Settings.
type CircuitBreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval after which closed-state counts are cleared. 0 never clears.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `yaml:"timeout"`

	// MinRequests and FailureRatio drive the default trip rule. When
	// MinRequests is 0 the breaker trips after 5 consecutive failures.
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`

	// ReadyToTrip overrides the default trip rule.
	ReadyToTrip func(counts Counts) bool `yaml:"-"`
}

// Counts mirrors gobreaker.Counts so callers need not import gobreaker.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig suits a network backend: trip at 15% failures once 20
// requests have been seen.
func DefaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:  5,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			MinRequests:  20,
			FailureRatio: 0.15,
		},
	}
}

// InProcessConfig suits the memory layer, which should practically never
// trip.
func InProcessConfig() Config {
	return Config{
		Timeout: 2 * time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:  10,
			Interval:     30 * time.Second,
			Timeout:      60 * time.Second,
			MinRequests:  100,
			FailureRatio: 0.5,
		},
	}
}

func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

func (c Config) WithCircuitBreakerTimeout(timeout time.Duration) Config {
	c.CircuitBreaker.Timeout = timeout
	return c
}

func (c CircuitBreakerConfig) shouldTrip(counts Counts) bool {
	if c.ReadyToTrip != nil {
		return c.ReadyToTrip(counts)
	}
	if c.MinRequests == 0 {
		return counts.ConsecutiveFailures >= 5
	}
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}
