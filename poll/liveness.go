package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrStalled is returned by the watchdog when too much time passes without
// a cursor-advancing poll cycle.
var ErrStalled = errors.New("no updates detected")

// UpdateSource exposes the timestamp the watchdog observes.
type UpdateSource interface {
	LastUpdate() time.Time
}

// Watchdog monitors pipeline liveness. It shares no mutable state with the
// poll loop beyond the atomic last-update read.
type Watchdog struct {
	source     UpdateSource
	staleAfter time.Duration
	interval   time.Duration
	logger     *zap.Logger
}

// NewWatchdog creates a watchdog that fires when the source's last update
// is older than staleAfter. Checks run at a quarter of the threshold, at
// least once per second.
func NewWatchdog(source UpdateSource, staleAfter time.Duration, logger *zap.Logger) *Watchdog {
	interval := staleAfter / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &Watchdog{
		source:     source,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until the context is cancelled or the pipeline goes stale, in
// which case it returns ErrStalled. The period before the first update is
// measured from the watchdog's own start.
func (w *Watchdog) Run(ctx context.Context) error {
	started := time.Now()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("liveness watchdog running",
		zap.Duration("stale_after", w.staleAfter),
		zap.Duration("check_interval", w.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last := w.source.LastUpdate()
			if last.IsZero() || last.Before(started) {
				last = started
			}
			if age := time.Since(last); age > w.staleAfter {
				w.logger.Error("pipeline stalled",
					zap.Duration("age", age),
					zap.Duration("stale_after", w.staleAfter),
				)
				return fmt.Errorf("%w for %s", ErrStalled, age.Round(time.Second))
			}
		}
	}
}
