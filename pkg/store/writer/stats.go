package writer

import "errors"

// Stats describes a writer's activity since it started.
type Stats struct {
	QueueDepth int

	// DroppedWrites were rejected because the queue stayed full.
	DroppedWrites int64

	// TotalWrites were accepted into the queue.
	TotalWrites int64

	FailedWrites int64
}

// DropRate is dropped / (accepted + dropped), or 0 before any write.
func (s Stats) DropRate() float64 {
	attempted := s.TotalWrites + s.DroppedWrites
	if attempted == 0 {
		return 0
	}
	return float64(s.DroppedWrites) / float64(attempted)
}

var (
	ErrQueueFull = errors.New("writer: queue full, write dropped")

	ErrWriterClosed = errors.New("writer: writer is closed")

	ErrFlushTimeout = errors.New("writer: flush timeout exceeded")
)
