package writer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	metricsmem "ledger-core/pkg/metrics/memory"
)

func TestWriter_Defaults(t *testing.T) {
	w := New("warm", Config{}, nil, nil)
	defer w.Close()

	if w.config.QueueSize != 1000 {
		t.Errorf("Expected queue size 1000, got %d", w.config.QueueSize)
	}
	if w.config.Workers != 2 {
		t.Errorf("Expected 2 workers, got %d", w.config.Workers)
	}
	if w.config.MaxWaitTime != 10*time.Millisecond {
		t.Errorf("Expected 10ms max wait, got %v", w.config.MaxWaitTime)
	}
}

func TestWriter_Write(t *testing.T) {
	collector := metricsmem.NewMemoryCollector()
	w := New("warm", Config{Workers: 4}, collector, nil)
	defer w.Close()

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Write(context.Background(), "k", func(ctx context.Context) error {
				atomic.AddInt64(&done, 1)
				return nil
			})
			if err != nil {
				t.Errorf("Write failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := w.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := atomic.LoadInt64(&done); got != 50 {
		t.Errorf("Expected 50 tasks run, got %d", got)
	}
	if lm := collector.GetLayerMetrics("warm"); lm == nil || lm.AsyncWrites != 50 {
		t.Errorf("Expected 50 async writes recorded, got %+v", lm)
	}
}

func TestWriter_Backpressure(t *testing.T) {
	w := New("warm", Config{QueueSize: 1, Workers: 1, MaxWaitTime: time.Millisecond}, nil, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	block := func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	if err := w.Write(context.Background(), "a", block); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	<-started // worker busy
	if err := w.Write(context.Background(), "b", block); err != nil {
		t.Fatalf("Second write should fill the queue: %v", err)
	}
	if err := w.Write(context.Background(), "c", block); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	close(release)
	w.Close()

	s := w.Stats()
	if s.DroppedWrites != 1 || s.TotalWrites != 2 {
		t.Errorf("Unexpected stats %+v", s)
	}
	if rate := s.DropRate(); rate < 0.33 || rate > 0.34 {
		t.Errorf("Expected drop rate ~0.333, got %v", rate)
	}
}

func TestWriter_FailedTask(t *testing.T) {
	w := New("warm", Config{}, nil, nil)
	defer w.Close()

	w.Write(context.Background(), "k", func(ctx context.Context) error {
		return errors.New("backend down")
	})
	if err := w.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if s := w.Stats(); s.FailedWrites != 1 {
		t.Errorf("Expected 1 failed write, got %d", s.FailedWrites)
	}
}

func TestWriter_FlushTimeout(t *testing.T) {
	w := New("warm", Config{Workers: 1}, nil, nil)
	release := make(chan struct{})
	defer func() {
		close(release)
		w.Close()
	}()

	w.Write(context.Background(), "k", func(ctx context.Context) error {
		<-release
		return nil
	})
	if err := w.Flush(20 * time.Millisecond); !errors.Is(err, ErrFlushTimeout) {
		t.Errorf("Expected ErrFlushTimeout, got %v", err)
	}
}

func TestWriter_CloseDrainsQueue(t *testing.T) {
	w := New("warm", Config{Workers: 1}, nil, nil)

	var done int64
	for i := 0; i < 10; i++ {
		w.Write(context.Background(), "k", func(ctx context.Context) error {
			atomic.AddInt64(&done, 1)
			return nil
		})
	}
	w.Close()

	if got := atomic.LoadInt64(&done); got != 10 {
		t.Errorf("Expected queued tasks to drain on Close, got %d", got)
	}
	if err := w.Write(context.Background(), "k", func(context.Context) error { return nil }); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected ErrWriterClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	w := New("warm", Config{}, nil, nil)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, "k", func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
