// Package chain layers document stores from fastest to slowest. The last
// tier is authoritative; the tiers above it are expiring caches that are
// written through on Set and warmed asynchronously on a lower-tier hit.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/store"
	"ledger-core/pkg/store/resilience"
	"ledger-core/pkg/store/writer"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Chain implements store.Layer over ordered tiers.
type Chain struct {
	layers  []*resilience.Layer
	writers []*writer.Writer
	sf      singleflight.Group

	config  Config
	metrics metrics.MetricsCollector
	logger  *logging.Logger

	// mu serializes writes. gen is bumped by every Set and Delete of a key
	// so a warm-up captured before the write can tell it is stale.
	mu  sync.Mutex
	gen map[string]uint64
}

// Config configures a chain.
type Config struct {
	// Resilience per tier, by index. Missing entries use
	// resilience.DefaultConfig.
	Resilience []resilience.Config

	Writer writer.Config

	TTLStrategy TTLStrategy

	// CacheTTL bounds documents in cache tiers when the strategy yields no
	// expiry (default 5m).
	CacheTTL time.Duration

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// New builds a chain over layers, fastest first, wrapping each with
// resilience protection.
func New(config Config, layers ...store.Layer) (*Chain, error) {
	if len(layers) == 0 {
		return nil, errors.New("chain: at least one layer required")
	}
	if config.TTLStrategy == nil {
		config.TTLStrategy = UniformTTLStrategy{}
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}

	c := &Chain{
		config:  config,
		metrics: metrics.OrNoOp(config.Metrics),
		logger:  logging.OrGlobal(config.Logger, "chain"),
		gen:     make(map[string]uint64),
	}

	for i, layer := range layers {
		rc := resilience.DefaultConfig()
		if i < len(config.Resilience) {
			rc = config.Resilience[i]
		}
		c.layers = append(c.layers, resilience.New(layer, rc, config.Metrics, c.logger))
	}

	// Only cache tiers are ever warmed.
	for _, layer := range c.layers[:len(c.layers)-1] {
		c.writers = append(c.writers, writer.New(layer.Name(), config.Writer, config.Metrics, c.logger))
	}

	c.logger.Info("store chain initialized", zap.String("tiers", c.String()))
	return c, nil
}

// Name identifies the chain by its tiers.
func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

// ttlFor returns the expiry for tier i. The authoritative tier keeps the
// caller's ttl; cache tiers always expire.
func (c *Chain) ttlFor(i int, base time.Duration) time.Duration {
	if i == len(c.layers)-1 {
		return base
	}
	ttl := c.config.TTLStrategy.GetTTL(i, len(c.layers), base)
	if ttl <= 0 || ttl > c.config.CacheTTL {
		ttl = c.config.CacheTTL
	}
	return ttl
}

// Get reads through the tiers, coalescing concurrent reads of one key.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.getWithFallback(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	// singleflight shares one slice between callers.
	return store.Clone(result.([]byte)), nil
}

func (c *Chain) getWithFallback(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	gen := c.generation(key)

	var lastErr error
	for i, layer := range c.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := layer.Get(ctx, key)
		if err != nil {
			if !store.IsNotFound(err) {
				c.logger.Debug("tier read failed, falling through",
					zap.String("layer", layer.Name()), logging.Key(key), zap.Error(err))
			}
			lastErr = err
			continue
		}

		c.metrics.RecordChainGet(true, i, time.Since(start))
		if i > 0 {
			c.warmUpperLayers(ctx, key, value, i, gen)
		}
		return value, nil
	}

	c.metrics.RecordChainGet(false, -1, time.Since(start))

	// A miss on the authoritative tier is a miss, even if a cache tier
	// was unreachable.
	if lastErr == nil || store.IsNotFound(lastErr) {
		return nil, store.ErrKeyNotFound
	}
	return nil, lastErr
}

// warmUpperLayers queues writes of value into tiers above hitIndex. Each
// write is skipped if key was written since gen was read.
func (c *Chain) warmUpperLayers(ctx context.Context, key string, value []byte, hitIndex int, gen uint64) {
	for i := hitIndex - 1; i >= 0; i-- {
		layer := c.layers[i]
		ttl := c.ttlFor(i, 0)
		doc := store.Clone(value)

		err := c.writers[i].Write(ctx, key, func(ctx context.Context) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.gen[key] != gen {
				return nil
			}
			return layer.Set(ctx, key, doc, ttl)
		})
		if err != nil {
			c.logger.Debug("warm-up not queued", zap.String("layer", layer.Name()), logging.Key(key), zap.Error(err))
		}
	}
}

// Set writes the authoritative tier first and then the caches. A failed
// authoritative write leaves every tier untouched. A failed cache write
// evicts the key from that tier.
func (c *Chain) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen[key]++

	last := len(c.layers) - 1
	if err := c.layers[last].Set(ctx, key, value, c.ttlFor(last, ttl)); err != nil {
		return err
	}

	for i := last - 1; i >= 0; i-- {
		layer := c.layers[i]
		if err := layer.Set(ctx, key, value, c.ttlFor(i, ttl)); err != nil {
			c.logger.Warn("cache tier write failed, evicting",
				zap.String("layer", layer.Name()), logging.Key(key), zap.Error(err))
			c.evict(ctx, layer, key)
		}
	}
	return nil
}

// Delete removes key from every tier. Only an authoritative failure is
// returned.
func (c *Chain) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen[key]++

	last := len(c.layers) - 1
	if err := c.layers[last].Delete(ctx, key); err != nil {
		return err
	}
	for i := last - 1; i >= 0; i-- {
		c.evict(ctx, c.layers[i], key)
	}
	return nil
}

func (c *Chain) evict(ctx context.Context, layer store.Layer, key string) {
	if err := layer.Delete(ctx, key); err != nil {
		c.logger.Error("cache tier eviction failed, tier may serve a stale document until it expires",
			zap.String("layer", layer.Name()), logging.Key(key), zap.Error(err))
	}
}

// Flush waits for queued warm-ups.
func (c *Chain) Flush(timeout time.Duration) error {
	for _, w := range c.writers {
		if err := w.Flush(timeout); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks every tier that supports it.
func (c *Chain) Ping(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", layer.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the writers, then closes the tiers.
func (c *Chain) Close() error {
	var errs []error
	for _, w := range c.writers {
		errs = append(errs, w.Close())
	}
	for _, layer := range c.layers {
		errs = append(errs, layer.Close())
	}
	return errors.Join(errs...)
}

// Layers returns the wrapped tiers, fastest first.
func (c *Chain) Layers() []store.Layer {
	out := make([]store.Layer, len(c.layers))
	for i, l := range c.layers {
		out[i] = l
	}
	return out
}

func (c *Chain) Len() int {
	return len(c.layers)
}

func (c *Chain) String() string {
	names := make([]string, len(c.layers))
	for i, l := range c.layers {
		names[i] = l.Name()
	}
	return fmt.Sprintf("chain(%d tiers): %s", len(c.layers), strings.Join(names, " -> "))
}
