// Package writer runs store writes off the caller's path through a bounded
// queue and a fixed worker pool. The chain uses it to warm faster tiers
// after a read served by a slower one.
package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"

	"go.uber.org/zap"
)

// Task is one queued write. It receives a context bounded by
// Config.TaskTimeout.
type Task func(ctx context.Context) error

type op struct {
	key  string
	task Task
}

// Writer executes Tasks asynchronously. Writes that cannot be queued within
// MaxWaitTime are dropped; the authoritative tier never depends on them.
type Writer struct {
	name    string
	queue   chan op
	config  Config
	metrics metrics.MetricsCollector
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// pending counts queued plus in-flight tasks.
	pending int64

	dropped int64
	total   int64
	failed  int64

	reportStop chan struct{}
	reportDone chan struct{}
}

// Config configures a Writer.
type Config struct {
	// QueueSize bounds the queue (default 1000).
	QueueSize int `yaml:"queue_size"`

	// Workers is the pool size (default 2).
	Workers int `yaml:"workers"`

	// MaxWaitTime is how long Write blocks on a full queue before
	// dropping (default 10ms).
	MaxWaitTime time.Duration `yaml:"max_wait_time"`

	// TaskTimeout bounds each task (default 5s).
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// ReportInterval is how often queue depth is reported (default 5s).
	ReportInterval time.Duration `yaml:"report_interval"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:      1000,
		Workers:        2,
		MaxWaitTime:    10 * time.Millisecond,
		TaskTimeout:    5 * time.Second,
		ReportInterval: 5 * time.Second,
	}
}

// New starts a writer named name. Close must be called to stop it.
func New(name string, config Config, collector metrics.MetricsCollector, logger *logging.Logger) *Writer {
	defaults := DefaultConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.MaxWaitTime <= 0 {
		config.MaxWaitTime = defaults.MaxWaitTime
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = defaults.ReportInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Writer{
		name:       name,
		queue:      make(chan op, config.QueueSize),
		config:     config,
		metrics:    metrics.OrNoOp(collector),
		logger:     logging.OrGlobal(logger, "writer").Named(name),
		ctx:        ctx,
		cancel:     cancel,
		reportStop: make(chan struct{}),
		reportDone: make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	go w.report()

	return w
}

// Write enqueues task. It returns ErrQueueFull when the write was dropped
// and ErrWriterClosed after Close.
func (w *Writer) Write(ctx context.Context, key string, task Task) error {
	select {
	case <-w.ctx.Done():
		return ErrWriterClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	atomic.AddInt64(&w.pending, 1)
	select {
	case w.queue <- op{key: key, task: task}:
		atomic.AddInt64(&w.total, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&w.pending, -1)
		atomic.AddInt64(&w.dropped, 1)
		w.metrics.RecordWriteDropped(w.name)
		w.logger.Debug("write dropped, queue full", logging.Key(key))
		return ErrQueueFull
	case <-ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ctx.Err()
	case <-w.ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ErrWriterClosed
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	for {
		select {
		case o := <-w.queue:
			w.run(o)
		case <-w.ctx.Done():
			// Drain what was accepted before Close.
			for {
				select {
				case o := <-w.queue:
					w.run(o)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) run(o op) {
	defer atomic.AddInt64(&w.pending, -1)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := o.task(ctx)
	w.metrics.RecordAsyncWrite(w.name, err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&w.failed, 1)
		w.logger.Warn("async write failed", logging.Key(o.key), zap.Error(err))
	}
}

// Flush waits until every accepted task has finished, or timeout elapses.
func (w *Writer) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for atomic.LoadInt64(&w.pending) > 0 {
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Close stops accepting writes, drains the queue and waits for the workers.
func (w *Writer) Close() error {
	select {
	case <-w.ctx.Done():
		return nil
	default:
	}

	w.cancel()
	w.wg.Wait()

	close(w.reportStop)
	<-w.reportDone
	return nil
}

func (w *Writer) report() {
	defer close(w.reportDone)

	ticker := time.NewTicker(w.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.metrics.RecordQueueDepth(w.name, len(w.queue))
		case <-w.reportStop:
			return
		}
	}
}

// Stats returns a snapshot of the writer's counters.
func (w *Writer) Stats() Stats {
	return Stats{
		QueueDepth:    len(w.queue),
		DroppedWrites: atomic.LoadInt64(&w.dropped),
		TotalWrites:   atomic.LoadInt64(&w.total),
		FailedWrites:  atomic.LoadInt64(&w.failed),
	}
}
