package store

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by layers. Backends wrap their native errors so callers
// only ever match on these.
var (
	ErrKeyNotFound = errors.New("store: key not found")

	ErrInvalidKey = errors.New("store: invalid key")

	ErrInvalidValue = errors.New("store: invalid value")

	// ErrLayerUnavailable is returned when a backend cannot be reached.
	ErrLayerUnavailable = errors.New("store: layer unavailable")

	ErrTimeout = errors.New("store: operation timeout")

	ErrCircuitOpen = errors.New("store: circuit breaker open")

	ErrClosed = errors.New("store: layer closed")
)

// IsNotFound reports whether err is a miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLayerUnavailable)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// ClassifyError returns a metrics label for err.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_breaker_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrLayerUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, ErrClosed):
		return "closed"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection", "connect", "dial"):
		return "connection"
	case containsAny(msg, "serialize", "marshal", "unmarshal", "encode", "decode"):
		return "serialization"
	case containsAny(msg, "redis", "postgres", "pq:"):
		return "backend"
	default:
		return "other"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError adds the layer name and operation to err.
func WrapError(err error, layer string, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store layer %s %s: %w", layer, operation, err)
}
