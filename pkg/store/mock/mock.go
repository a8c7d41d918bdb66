// Package mock provides a store.Layer test double with per-method hooks.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ledger-core/pkg/store"
)

// Layer calls the configured hooks, or behaves as an in-memory map when a
// hook is nil. Call counts are tracked atomically.
type Layer struct {
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	CloseFunc  func() error

	name string

	mu   sync.Mutex
	data map[string][]byte

	getCalls    int64
	setCalls    int64
	deleteCalls int64
	closeCalls  int64
}

// New returns a mock that stores documents in memory until hooks are set.
func New(name string) *Layer {
	return &Layer{name: name, data: make(map[string][]byte)}
}

// Failing returns a mock whose every operation fails with err.
func Failing(name string, err error) *Layer {
	m := New(name)
	m.GetFunc = func(context.Context, string) ([]byte, error) { return nil, err }
	m.SetFunc = func(context.Context, string, []byte, time.Duration) error { return err }
	m.DeleteFunc = func(context.Context, string) error { return err }
	return m
}

func (m *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return store.Clone(v), nil
}

func (m *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	atomic.AddInt64(&m.setCalls, 1)
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = store.Clone(value)
	return nil
}

func (m *Layer) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Layer) Name() string {
	return m.name
}

func (m *Layer) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Peek reads the in-memory map directly, bypassing hooks and counters.
func (m *Layer) Peek(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Layer) GetCalls() int    { return int(atomic.LoadInt64(&m.getCalls)) }
func (m *Layer) SetCalls() int    { return int(atomic.LoadInt64(&m.setCalls)) }
func (m *Layer) DeleteCalls() int { return int(atomic.LoadInt64(&m.deleteCalls)) }
func (m *Layer) CloseCalls() int  { return int(atomic.LoadInt64(&m.closeCalls)) }
