package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pkg/fn")

// Stage is one step of a pipeline: it consumes In and produces Out,
// reporting failure through the Result rather than a bare error.
type Stage[In, Out any] func(ctx context.Context, in In) Result[Out]

// Then composes two stages into one. The second stage only runs when
// the first succeeds. Each half gets its own child span.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, in A) Result[C] {
		ctx, span := tracer.Start(ctx, "stage.first")
		mid := first(ctx, in)
		span.End()
		if mid.IsErr() {
			_, err := mid.Unwrap()
			return Err[C](err)
		}

		ctx, span = tracer.Start(ctx, "stage.second")
		defer span.End()
		v, _ := mid.Unwrap()
		return second(ctx, v)
	}
}

// Pipeline names a same-type stage chain and reduces it to one stage.
func Pipeline[T any](stages ...Stage[T, T]) Stage[T, T] {
	return func(ctx context.Context, in T) Result[T] {
		cur := Ok(in)
		for _, s := range stages {
			if cur.IsErr() {
				return cur
			}
			v, _ := cur.Unwrap()
			cur = s(ctx, v)
		}
		return cur
	}
}

// BatchStage lifts a per-item stage to a slice stage, running up to
// parallelism items at once. One failed item fails the whole batch.
func BatchStage[In, Out any](parallelism int, stage Stage[In, Out]) Stage[[]In, []Out] {
	return func(ctx context.Context, items []In) Result[[]Out] {
		results := ParMapResult(ctx, parallelism, items, func(ctx context.Context, item In) Result[Out] {
			return stage(ctx, item)
		})
		return Collect(results)
	}
}

// MapStage lifts an infallible function into a stage.
func MapStage[In, Out any](f func(In) Out) Stage[In, Out] {
	return func(_ context.Context, in In) Result[Out] {
		return Ok(f(in))
	}
}

// TapStage runs a side effect on the value and passes it through.
func TapStage[T any](f func(ctx context.Context, v T)) Stage[T, T] {
	return func(ctx context.Context, in T) Result[T] {
		f(ctx, in)
		return Ok(in)
	}
}

// TracedStage wraps a stage in a named span and records failures on it.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		out := stage(ctx, in)
		if out.IsErr() {
			_, err := out.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out
	}
}
