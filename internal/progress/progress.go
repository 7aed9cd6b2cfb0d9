// Package progress reports incremental progress of long-running checksum work.
package progress

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// DefaultInterval is how many steps pass between two log lines.
const DefaultInterval = 1000

// ProgressTracker receives progress updates. Implementations must be safe for
// concurrent use because the parallel checksum path reports from workers.
type ProgressTracker interface {
	Update(current, total int)
}

// Noop discards all updates.
type Noop struct{}

// Update implements ProgressTracker.
func (Noop) Update(int, int) {}

// Tracker logs progress through slog every Interval steps and on completion.
type Tracker struct {
	ctx       context.Context
	logger    *slog.Logger
	label     string
	interval  int
	last      atomic.Int64
	completed atomic.Int64
}

// NewTracker creates a Tracker that logs with the given label.
func NewTracker(ctx context.Context, logger *slog.Logger, label string) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		ctx:      ctx,
		logger:   logger,
		label:    label,
		interval: DefaultInterval,
	}
}

// WithInterval overrides the logging interval.
func (t *Tracker) WithInterval(n int) *Tracker {
	if n > 0 {
		t.interval = n
	}
	return t
}

// Update implements ProgressTracker.
func (t *Tracker) Update(current, total int) {
	if total <= 0 {
		return
	}
	if current%t.interval != 0 && current != total {
		return
	}
	// Workers may report out of order; never log a smaller value after a larger one.
	for {
		prev := t.last.Load()
		if int64(current) <= prev {
			return
		}
		if t.last.CompareAndSwap(prev, int64(current)) {
			break
		}
	}

	percent := float64(current) / float64(total) * 100
	t.logger.DebugContext(t.ctx, t.label,
		"done", current,
		"total", total,
		"percent", percent)

	// A finished partition lets the next one start from zero.
	if current == total {
		t.completed.Add(1)
		t.last.Store(0)
	}
}

// Last returns the highest step logged for the partition in progress.
func (t *Tracker) Last() int {
	return int(t.last.Load())
}

// Completed returns how many partitions reached their total.
func (t *Tracker) Completed() int {
	return int(t.completed.Load())
}
