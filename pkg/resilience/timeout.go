package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that an operation ran past its own deadline, as
// opposed to its caller giving up. It matches context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: exceeded %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// WithTimeout runs fn under a deadline of timeout; zero or less means none.
// fn must honour its context. When the deadline fires, the returned error
// wraps both a *TimeoutError and fn's own error.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	limit := &TimeoutError{Op: name, Limit: timeout}
	tctx, cancel := context.WithTimeoutCause(ctx, timeout, limit)
	defer cancel()

	err := fn(tctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	if context.Cause(tctx) == limit {
		return fmt.Errorf("%w: %w", limit, err)
	}
	return err
}
