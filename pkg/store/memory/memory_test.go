package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledger-core/pkg/clock"
	"ledger-core/pkg/store"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLayer(t *testing.T, maxSize int) (*Layer, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	l := New(Config{Name: "test", MaxSize: maxSize, Clock: clk})
	t.Cleanup(func() { l.Close() })
	return l, clk
}

func TestLayer_GetSet(t *testing.T) {
	l, _ := newTestLayer(t, 0)
	ctx := context.Background()

	if _, err := l.Get(ctx, "ledger:users"); !store.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := l.Set(ctx, "ledger:users", []byte(`[]`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := l.Get(ctx, "ledger:users")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "[]" {
		t.Errorf("Expected '[]', got %s", value)
	}
}

func TestLayer_ValuesAreCopied(t *testing.T) {
	l, _ := newTestLayer(t, 0)
	ctx := context.Background()

	src := []byte(`{"a":1}`)
	l.Set(ctx, "doc", src, 0)
	src[0] = 'X'

	got, _ := l.Get(ctx, "doc")
	if string(got) != `{"a":1}` {
		t.Errorf("Stored value was aliased: %s", got)
	}

	got[0] = 'Y'
	again, _ := l.Get(ctx, "doc")
	if string(again) != `{"a":1}` {
		t.Errorf("Returned value was aliased: %s", again)
	}
}

func TestLayer_Delete(t *testing.T) {
	l, _ := newTestLayer(t, 0)
	ctx := context.Background()

	l.Set(ctx, "session", []byte(`{}`), 0)
	if err := l.Delete(ctx, "session"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := l.Get(ctx, "session"); !store.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
	if err := l.Delete(ctx, "session"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestLayer_TTL(t *testing.T) {
	l, clk := newTestLayer(t, 0)
	ctx := context.Background()

	l.Set(ctx, "short", []byte("x"), time.Minute)
	l.Set(ctx, "forever", []byte("y"), 0)

	if ttl, err := l.TTL(ctx, "short"); err != nil || ttl != time.Minute {
		t.Errorf("Expected 1m TTL, got %v (%v)", ttl, err)
	}
	if ttl, _ := l.TTL(ctx, "forever"); ttl != -1 {
		t.Errorf("Expected -1 TTL, got %v", ttl)
	}

	clk.Set(epoch.Add(2 * time.Minute))

	if _, err := l.Get(ctx, "short"); !store.IsNotFound(err) {
		t.Errorf("Expected expired key to miss, got %v", err)
	}
	if _, err := l.Get(ctx, "forever"); err != nil {
		t.Errorf("Document without TTL should survive, got %v", err)
	}
}

func TestLayer_LRUEviction(t *testing.T) {
	l, clk := newTestLayer(t, 2)
	ctx := context.Background()

	l.Set(ctx, "a", []byte("1"), 0)
	clk.Set(epoch.Add(time.Second))
	l.Set(ctx, "b", []byte("2"), 0)
	clk.Set(epoch.Add(2 * time.Second))
	l.Get(ctx, "a") // a is now more recent than b
	clk.Set(epoch.Add(3 * time.Second))
	l.Set(ctx, "c", []byte("3"), 0)

	if _, err := l.Get(ctx, "b"); !store.IsNotFound(err) {
		t.Errorf("Expected b to be evicted, got %v", err)
	}
	if _, err := l.Get(ctx, "a"); err != nil {
		t.Errorf("Expected a to survive, got %v", err)
	}
	if s := l.Stats(); s.Size != 2 || s.Capacity != 2 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestLayer_InvalidInput(t *testing.T) {
	l, _ := newTestLayer(t, 0)
	ctx := context.Background()

	if err := l.Set(ctx, "", []byte("x"), 0); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
	if err := l.Set(ctx, "k", nil, 0); !errors.Is(err, store.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}

func TestLayer_Close(t *testing.T) {
	l := New(Config{Clock: clock.Fake(epoch)})
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.Set(context.Background(), "k", []byte("v"), 0); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestLayer_Concurrent(t *testing.T) {
	l, _ := newTestLayer(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			l.Set(ctx, key, []byte(key), 0)
			l.Get(ctx, key)
			l.Delete(ctx, key)
		}(i)
	}
	wg.Wait()
}
