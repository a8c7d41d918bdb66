// Package memory is an in-process document layer. It serves as the whole
// store for single-process runs and as the hot tier of a chain.
package memory

import (
	"context"
	"sync"
	"time"

	"ledger-core/pkg/clock"
	"ledger-core/pkg/store"
)

// Layer is a map-backed store.Layer with optional expiry and LRU bound.
type Layer struct {
	mu   sync.RWMutex
	data map[string]*entry

	config Config
	clock  clock.Clock

	ticker *clock.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

type entry struct {
	store.Entry
	accessedAt time.Time
}

// Config configures a memory layer.
type Config struct {
	// Name identifies the layer (default "memory").
	Name string

	// MaxSize bounds the number of documents with LRU eviction. 0 means
	// unbounded; the authoritative tier must be unbounded.
	MaxSize int

	// CleanupInterval is how often expired documents are swept
	// (default one minute).
	CleanupInterval time.Duration

	Clock clock.Clock
}

// New creates a memory layer and starts its expiry sweeper.
func New(config Config) *Layer {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	l := &Layer{
		data:   make(map[string]*entry),
		config: config,
		clock:  clock.OrReal(config.Clock),
		stop:   make(chan struct{}),
	}
	l.ticker = l.clock.NewTicker(config.CleanupInterval)

	l.wg.Add(1)
	go l.sweep()

	return l
}

// Get returns a copy of the stored document.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, store.ErrClosed
	}

	e, ok := l.data[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	if e.Expired(now) {
		delete(l.data, key)
		return nil, store.ErrKeyNotFound
	}

	e.accessedAt = now
	return store.Clone(e.Value), nil
}

// Set stores a copy of value. A zero ttl never expires.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return store.ErrInvalidValue
	}

	now := l.clock.Now()
	e := &entry{
		Entry: store.Entry{
			Value:     store.Clone(value),
			CreatedAt: now,
		},
		accessedAt: now,
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return store.ErrClosed
	}

	if _, exists := l.data[key]; !exists && l.config.MaxSize > 0 && len(l.data) >= l.config.MaxSize {
		l.evictLocked()
	}
	l.data[key] = e

	return nil
}

// evictLocked drops the least recently used document.
func (l *Layer) evictLocked() {
	var lruKey string
	var lruTime time.Time
	for k, e := range l.data {
		if lruKey == "" || e.accessedAt.Before(lruTime) {
			lruKey = k
			lruTime = e.accessedAt
		}
	}
	if lruKey != "" {
		delete(l.data, lruKey)
	}
}

// Delete removes key. Missing keys are not an error.
func (l *Layer) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return store.ErrClosed
	}
	delete(l.data, key)
	return nil
}

// TTL returns the remaining lifetime of key, -1 for no expiry.
func (l *Layer) TTL(ctx context.Context, key string) (time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.data[key]
	if !ok {
		return 0, store.ErrKeyNotFound
	}
	now := l.clock.Now()
	if e.Expired(now) {
		return 0, store.ErrKeyNotFound
	}
	return e.TimeToLive(now), nil
}

func (l *Layer) Name() string {
	return l.config.Name
}

// Close stops the sweeper and drops all documents. Further calls fail with
// store.ErrClosed.
func (l *Layer) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.data = nil
	l.mu.Unlock()

	l.ticker.Stop()
	close(l.stop)
	l.wg.Wait()
	return nil
}

func (l *Layer) sweep() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ticker.C:
			l.removeExpired()
		case <-l.stop:
			return
		}
	}
}

func (l *Layer) removeExpired() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.data {
		if e.Expired(now) {
			delete(l.data, key)
		}
	}
}

// Stats describes the layer's occupancy.
type Stats struct {
	Size     int
	MaxSize  int
	Capacity int // -1 when unbounded
}

func (l *Layer) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Size:     len(l.data),
		MaxSize:  l.config.MaxSize,
		Capacity: l.config.MaxSize,
	}
	if s.Capacity == 0 {
		s.Capacity = -1
	}
	return s
}
