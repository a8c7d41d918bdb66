package chain

import (
	"testing"
	"time"

	"ledger-core/pkg/store/mock"
)

func TestTTLStrategies(t *testing.T) {
	base := time.Hour

	tests := []struct {
		name     string
		strategy TTLStrategy
		index    int
		count    int
		expected time.Duration
	}{
		{"uniform", UniformTTLStrategy{}, 0, 3, time.Hour},
		{"decay top", DecayingTTLStrategy{DecayFactor: 0.5}, 0, 3, 15 * time.Minute},
		{"decay middle", DecayingTTLStrategy{DecayFactor: 0.5}, 1, 3, 30 * time.Minute},
		{"decay bottom", DecayingTTLStrategy{DecayFactor: 0.5}, 2, 3, time.Hour},
		{"decay invalid factor", DecayingTTLStrategy{DecayFactor: 1.5}, 0, 3, time.Hour},
		{"custom", CustomTTLStrategy{TTLs: []time.Duration{time.Minute}}, 0, 2, time.Minute},
		{"custom fallback", CustomTTLStrategy{TTLs: []time.Duration{time.Minute}}, 1, 2, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.strategy.GetTTL(tt.index, tt.count, base); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestChain_TTLFor(t *testing.T) {
	c := newTestChain(t, Config{
		TTLStrategy: DecayingTTLStrategy{DecayFactor: 0.5},
		CacheTTL:    10 * time.Minute,
	}, mock.New("hot"), mock.New("warm"), mock.New("durable"))

	if got := c.ttlFor(2, 0); got != 0 {
		t.Errorf("Authoritative tier should keep the caller ttl, got %v", got)
	}
	if got := c.ttlFor(0, 0); got != 10*time.Minute {
		t.Errorf("Cache tier without ttl should use CacheTTL, got %v", got)
	}
	if got := c.ttlFor(1, 4*time.Minute); got != 2*time.Minute {
		t.Errorf("Expected decayed 2m, got %v", got)
	}
	if got := c.ttlFor(1, time.Hour); got != 10*time.Minute {
		t.Errorf("Cache tier ttl should be capped at CacheTTL, got %v", got)
	}
}
