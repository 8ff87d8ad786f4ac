// Package resilience bounds blocking calls made against the document store.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation exceeds its timeout.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn with a context that expires after timeout. If fn has not
// returned by then, WithTimeout stops waiting and returns an error wrapping
// ErrTimeout; fn keeps running until it notices its context is done.
// A non-positive timeout runs fn without a deadline.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		// fn may observe this deadline and return it before the select sees Done.
		// Deadlines of contexts fn derived itself are passed through unchanged.
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && timeoutCtx.Err() != nil {
			return fmt.Errorf("%w: %w", timeoutError(timeout), err)
		}
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return timeoutError(timeout)
	}
}

// Deadline bounds a family of calls by the same timeout.
type Deadline struct {
	timeout time.Duration
}

// NewDeadline returns a Deadline applying timeout to every call.
func NewDeadline(timeout time.Duration) *Deadline {
	return &Deadline{timeout: timeout}
}

// Timeout returns the configured timeout.
func (d *Deadline) Timeout() time.Duration { return d.timeout }

// Run calls fn through WithTimeout.
func (d *Deadline) Run(ctx context.Context, fn func(context.Context) error) error {
	return WithTimeout(ctx, d.timeout, fn)
}

func timeoutError(timeout time.Duration) error {
	return fmt.Errorf("%w after %s", ErrTimeout, timeout)
}
