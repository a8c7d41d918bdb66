package chain

import (
	"math"
	"time"
)

// TTLStrategy picks the expiry used when writing to tier layerIndex of a
// chain with layerCount tiers. baseTTL is the caller's ttl.
type TTLStrategy interface {
	GetTTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration
}

// UniformTTLStrategy uses baseTTL everywhere.
type UniformTTLStrategy struct{}

func (UniformTTLStrategy) GetTTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration {
	return baseTTL
}

// DecayingTTLStrategy shortens expiry towards the fast end of the chain:
// tier i gets baseTTL * DecayFactor^(layerCount-1-i).
type DecayingTTLStrategy struct {
	DecayFactor float64
}

func (s DecayingTTLStrategy) GetTTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration {
	if s.DecayFactor <= 0 || s.DecayFactor >= 1 || baseTTL <= 0 {
		return baseTTL
	}
	exponent := float64(layerCount - 1 - layerIndex)
	if exponent <= 0 {
		return baseTTL
	}
	return time.Duration(float64(baseTTL) * math.Pow(s.DecayFactor, exponent))
}

// CustomTTLStrategy uses TTLs[i] for tier i, falling back to baseTTL.
type CustomTTLStrategy struct {
	TTLs []time.Duration
}

func (s CustomTTLStrategy) GetTTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration {
	if layerIndex < len(s.TTLs) {
		return s.TTLs[layerIndex]
	}
	return baseTTL
}
