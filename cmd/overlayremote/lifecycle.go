package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// overlayLifecycle implements OverlayLifecycle by canceling the daemon context.
type overlayLifecycle struct {
	once    sync.Once
	cancel  context.CancelFunc
	onClose func()
	logger  *slog.Logger
}

func newOverlayLifecycle(cancel context.CancelFunc, onClose func(), logger *slog.Logger) *overlayLifecycle {
	return &overlayLifecycle{cancel: cancel, onClose: onClose, logger: logger}
}

// RequestStop never fails; repeated calls after the first are ignored.
func (l *overlayLifecycle) RequestStop() {
	l.once.Do(func() {
		l.logger.Info("overlay stop requested")
		if l.onClose != nil {
			l.onClose()
		}
		if l.cancel != nil {
			l.cancel()
		}
	})
}

// waitStartDelay blocks for d before the overlay becomes active. It returns
// ctx.Err() if the daemon is stopped while waiting.
func waitStartDelay(ctx context.Context, d time.Duration, logger *slog.Logger) error {
	if d <= 0 {
		return nil
	}
	logger.Info("delaying start", "delay", d)

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
