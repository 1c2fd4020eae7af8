package fn

import (
	"context"
	"sync"
)

// ParMap applies f to every item using at most parallelism goroutines.
// Output order matches input order.
func ParMap[In, Out any](ctx context.Context, parallelism int, items []In, f func(ctx context.Context, item In) Out) []Out {
	if parallelism < 1 {
		parallelism = 1
	}
	out := make([]Out, len(items))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item In) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = f(ctx, item)
		}(i, item)
	}
	wg.Wait()
	return out
}

// ParMapResult is ParMap for fallible work. Every item runs; callers
// decide what a partial failure means via Collect or a manual scan.
func ParMapResult[In, Out any](ctx context.Context, parallelism int, items []In, f func(ctx context.Context, item In) Result[Out]) []Result[Out] {
	return ParMap(ctx, parallelism, items, f)
}

// FanOut runs every worker against the same input concurrently and
// returns their outputs in worker order.
func FanOut[In, Out any](ctx context.Context, in In, workers ...func(ctx context.Context, in In) Out) []Out {
	out := make([]Out, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w func(ctx context.Context, in In) Out) {
			defer wg.Done()
			out[i] = w(ctx, in)
		}(i, w)
	}
	wg.Wait()
	return out
}

// FanOutResult is FanOut for fallible workers.
func FanOutResult[In, Out any](ctx context.Context, in In, workers ...func(ctx context.Context, in In) Result[Out]) []Result[Out] {
	return FanOut(ctx, in, workers...)
}
