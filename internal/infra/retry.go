package infra

import (
	"context"
	"time"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// retry calls fn until it succeeds, the attempts run out or ctx ends,
// doubling the pause between attempts.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}
