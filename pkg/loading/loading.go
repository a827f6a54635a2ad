// Package loading keeps the "chef is inspecting" state on screen for a minimum
// time without ad hoc timers.
package loading

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// AtLeast runs op and returns once both op has finished and minimum has elapsed.
// The operation's result and error are passed through unchanged. Cancelling
// ctx cuts the minimum short; AtLeast then returns ctx's error once op returns.
func AtLeast[T any](ctx context.Context, minimum time.Duration, op func(context.Context) (T, error)) (T, error) {
	var (
		result T
		opErr  error
	)

	var g errgroup.Group
	g.Go(func() error {
		result, opErr = op(ctx)
		return nil
	})
	g.Go(func() error {
		if minimum <= 0 {
			return nil
		}
		timer := time.NewTimer(minimum)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		var zero T
		return zero, err
	}
	return result, opErr
}
