package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts controls backoff behavior for Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry is a sane starting point for transient failures.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// Retry runs f until it succeeds, attempts run out, or ctx is done.
// The wait doubles after each failure, capped at MaxWait. With Jitter
// the wait is scaled by a random factor in [0.5, 1.5) to spread out
// contending retriers.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(ctx context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	wait := opts.InitialWait

	var last Result[T]
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Err[T](err)
		}
		last = f(ctx)
		if last.IsOk() || attempt == opts.MaxAttempts {
			return last
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(sleep):
		}
		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return last
}

// RetryStage wraps a stage with retry semantics.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
