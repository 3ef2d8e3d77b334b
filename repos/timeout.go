package repos

import (
	"context"
	"errors"
	"time"
)

// ErrStoreTimeout is returned when a store call runs past its deadline.
var ErrStoreTimeout = errors.New("store call timed out")

// WithTimeout runs fn under a deadline of d. A deadline hit by fn is
// reported as ErrStoreTimeout wrapping the original error. A zero d means no
// deadline.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return &timeoutError{err: err}
	}
	return err
}

type timeoutError struct {
	err error
}

func (e *timeoutError) Error() string { return ErrStoreTimeout.Error() + ": " + e.err.Error() }

func (e *timeoutError) Is(target error) bool { return target == ErrStoreTimeout }

func (e *timeoutError) Unwrap() error { return e.err }
