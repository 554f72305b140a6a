package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultBaseDelay is the first backoff interval; it doubles per retry.
const DefaultBaseDelay = 500 * time.Millisecond

// Permanent marks an error as non-retriable.
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *Permanent) Unwrap() error { return e.Err }

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts (not before the first). An error wrapped in *Permanent stops
// immediately. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, base time.Duration, fn func(ctx context.Context) error) error {
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-t.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.Err)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
