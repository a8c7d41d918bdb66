// Package resilience guards a store layer with a circuit breaker and a
// per-operation timeout.
package resilience

import (
	"context"
	"errors"
	"time"

	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/store"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Layer wraps a store.Layer. Misses and invalid input never count against
// the breaker; only backend failures do.
type Layer struct {
	layer   store.Layer
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// New wraps layer. A nil collector records nothing; a nil logger uses the
// global one.
func New(layer store.Layer, config Config, collector metrics.MetricsCollector, logger *logging.Logger) *Layer {
	logger = logging.OrGlobal(logger, "resilience").Named(layer.Name())

	rl := &Layer{
		layer:   layer,
		timeout: config.Timeout,
		metrics: metrics.OrNoOp(collector),
		logger:  logger,
	}

	rl.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        layer.Name(),
		MaxRequests: config.CircuitBreaker.MaxRequests,
		Interval:    config.CircuitBreaker.Interval,
		Timeout:     config.CircuitBreaker.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return config.CircuitBreaker.shouldTrip(Counts{
				Requests:             c.Requests,
				TotalSuccesses:       c.TotalSuccesses,
				TotalFailures:        c.TotalFailures,
				ConsecutiveSuccesses: c.ConsecutiveSuccesses,
				ConsecutiveFailures:  c.ConsecutiveFailures,
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				store.IsNotFound(err) ||
				errors.Is(err, store.ErrInvalidKey) ||
				errors.Is(err, store.ErrInvalidValue)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("layer", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rl.metrics.RecordCircuitState(name, circuitState(to))
		},
	})

	logger.Debug("resilient layer initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreaker.MaxRequests),
		zap.Duration("circuit_timeout", config.CircuitBreaker.Timeout),
	)

	return rl
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

func (rl *Layer) Name() string {
	return rl.layer.Name()
}

// State reports the breaker state.
func (rl *Layer) State() metrics.CircuitState {
	return circuitState(rl.cb.State())
}

// execute runs op through the breaker under the configured timeout and maps
// breaker and deadline failures onto store errors.
func execute[T any](rl *Layer, ctx context.Context, operation, key string, op func(context.Context) (T, error)) (T, error) {
	if rl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rl.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := rl.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})

	var zero T
	switch {
	case err == nil:
		return result.(T), nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rl.logger.Warn("circuit breaker open, request rejected",
			zap.String("operation", operation),
			logging.Key(key),
		)
		err = store.WrapError(store.ErrCircuitOpen, rl.Name(), operation)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		rl.logger.Warn("operation timeout",
			zap.String("operation", operation),
			logging.Key(key),
			zap.Duration("timeout", rl.timeout),
			zap.Duration("elapsed", time.Since(start)),
		)
		err = store.WrapError(store.ErrTimeout, rl.Name(), operation)
	case store.IsNotFound(err):
		return zero, err
	default:
		rl.logger.Error("operation failed",
			zap.String("operation", operation),
			logging.Key(key),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}

	rl.metrics.RecordStoreError(rl.Name(), operation, store.ClassifyError(err))
	return zero, err
}

func (rl *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := execute(rl, ctx, "get", key, func(ctx context.Context) ([]byte, error) {
		return rl.layer.Get(ctx, key)
	})
	rl.metrics.RecordGet(rl.Name(), err == nil, time.Since(start))
	return value, err
}

func (rl *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	_, err := execute(rl, ctx, "set", key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rl.layer.Set(ctx, key, value, ttl)
	})
	rl.metrics.RecordSet(rl.Name(), err == nil, time.Since(start))
	return err
}

func (rl *Layer) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := execute(rl, ctx, "delete", key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rl.layer.Delete(ctx, key)
	})
	rl.metrics.RecordDelete(rl.Name(), err == nil, time.Since(start))
	return err
}

// Ping forwards to the wrapped layer when it supports health checks.
func (rl *Layer) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := rl.layer.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (rl *Layer) Close() error {
	return rl.layer.Close()
}
