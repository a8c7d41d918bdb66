// Package store is the key-value document boundary the ledger persists
// through. Values are opaque JSON documents; layers differ only in where the
// bytes live.
package store

import (
	"context"
	"time"
)

// Layer is implemented by every document backend and by the decorators that
// wrap them (resilience, chain).
type Layer interface {
	// Get returns the stored document, or an error matching ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl means the document never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs and metrics.
	Name() string

	Close() error
}

// Entry is a stored document plus the bookkeeping in-process layers keep.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time // zero means no expiry
	CreatedAt time.Time
}

// Expired reports whether the entry has expired at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// TimeToLive returns the remaining lifetime, 0 once expired, or -1 when the
// entry never expires.
func (e *Entry) TimeToLive(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return -1
	}
	if e.Expired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// Clone returns a copy of b so callers cannot alias stored bytes.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
