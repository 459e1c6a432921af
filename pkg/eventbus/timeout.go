package eventbus

import (
	"context"
	"time"

	buserrors "github.com/randalmurphal/eventbus/pkg/eventbus/errors"
)

// WithTimeout races fn against a deadline and returns whichever finishes
// first. A d <= 0 disables the deadline.
//
// The deadline bounds how long the caller waits, not how long fn runs:
// fn is never cancelled and may keep running, and mutating state, after
// WithTimeout has reported a timeout. Its eventual outcome is discarded.
// Cancelling ctx also ends the wait early. Panics in fn are recovered and
// reported as a *errors.PanicError.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) Result[T] {
	return guard(ctx, d, "guard", "", "", fn)
}

// guard is WithTimeout with event context attached to timeout errors.
func guard[T any](ctx context.Context, d time.Duration, op, tag, correlationID string, fn func(ctx context.Context) (T, error)) Result[T] {
	done := make(chan Result[T], 1)

	go func() {
		var res Result[T]
		defer func() {
			if r := recover(); r != nil {
				res = failed[T](buserrors.Recover(r))
			}
			done <- res
		}()
		v, err := fn(ctx)
		res = Result[T]{Value: v, Err: err}
	}()

	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case res := <-done:
		return res
	case <-deadline:
		return failed[T](buserrors.Timeout(op, tag, correlationID))
	case <-ctx.Done():
		return failed[T](buserrors.Cancelled(ctx.Err(), op, tag, correlationID))
	}
}
