// Package besteffort is the single error boundary for non-critical writes.
//
// Every telemetry write that must not perturb the rendering path goes
// through Do or Go: failures and panics are caught, logged with their
// operation name and correlation fields, and never propagated. The
// never-throws contract of the write path is enforced here by construction
// instead of by convention at each call site.
package besteffort

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// Do runs fn inline, catching errors and panics. Returns true when fn
// completed without error. The caller's context is passed through so fn
// inherits any ambient deadline.
func Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error, fields ...any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			logger.Error("telemetry write panicked",
				append([]any{"op", op, "panic", r, "stack", string(debug.Stack())}, fields...)...)
		}
	}()

	if err := fn(ctx); err != nil {
		logger.Warn("telemetry write failed", append([]any{"op", op, "error", err}, fields...)...)
		return false
	}
	return true
}

// Go runs fn on a detached goroutine and returns immediately. The new
// goroutine carries the caller's context values but not its cancellation,
// so an abandoned request cannot cancel an in-flight telemetry write.
func Go(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error, fields ...any) {
	detached := context.WithoutCancel(ctx)
	go func() {
		Do(detached, logger, op, fn, fields...)
	}()
}
