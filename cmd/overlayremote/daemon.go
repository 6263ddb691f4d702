package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - One goroutine owns the Engine; events are handled to completion in the
//     order they arrive (evdev and IPC share the same channel).
//   - Outcomes go back to the requester (if it asked) and out as feedback.
//   - Feedback publishing never blocks the loop.
//
// ============================================================================

// runDaemon consumes requests until ctx is canceled or the channel is closed.
func runDaemon(
	ctx context.Context,
	requests <-chan Request,
	engine *Engine,
	feedback chan<- Broadcast,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case req, ok := <-requests:
			if !ok {
				logger.Info("daemon stopping (requests channel closed)")
				return
			}

			out := engine.Handle(req.Event)
			logOutcome(logger, out)

			if req.Reply != nil {
				select {
				case req.Reply <- out:
				default:
					logger.Warn("outcome reply channel not ready; dropping outcome")
				}
			}

			if out.Resolved {
				publish(feedback, BroadcastActionResult{Outcome: out, At: time.Now()}, logger)
			}
		}
	}
}

func logOutcome(logger *slog.Logger, out Outcome) {
	if !out.Resolved {
		return
	}
	attrs := []any{"action", out.Action.String(), "result", out.Result.Kind.String()}
	if out.Result.Reason != "" {
		attrs = append(attrs, "reason", out.Result.Reason)
	}

	switch out.Result.Kind {
	case ResultPermissionDenied:
		logger.Error("action permission denied", attrs...)
	case ResultDispatchFailed:
		logger.Error("action failed", attrs...)
	case ResultSuccess:
		logger.Debug("action done", attrs...)
	}
}

// publish enqueues a feedback message without blocking.
func publish(feedback chan<- Broadcast, b Broadcast, logger *slog.Logger) {
	if feedback == nil {
		return
	}
	select {
	case feedback <- b:
	default:
		logger.Warn("feedback queue full, dropping message")
	}
}
