// Package resilience guards calls to flaky dependencies with a circuit
// breaker and a token-bucket rate limiter, plus fn.Stage wrappers so
// either can sit inline in a pipeline.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/VoxPulseAI/voxpulse/pkg/fn"
)

// State is the breaker's position in its closed/open/half-open cycle.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls rejected outright
	StateHalfOpen              // limited probe calls allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker. Zero fields fall back to
// DefaultBreakerOpts.
type BreakerOpts struct {
	// FailThreshold is the consecutive-failure count that trips the breaker.
	FailThreshold int
	// Timeout is how long a tripped breaker rejects before probing again.
	Timeout time.Duration
	// HalfOpenMax caps the probe calls admitted while half-open.
	HalfOpenMax int
}

var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker rejects calls after repeated failures, then lets a probe
// through once Timeout elapses. A probe success closes it again.
type Breaker struct {
	mu        sync.Mutex
	opts      BreakerOpts
	state     State
	streak    int // consecutive failures while closed
	probes    int // probe calls admitted while half-open
	trippedAt time.Time
	now       func() time.Time // swapped in tests
}

func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State reports the breaker's current state, applying the transition
// from open to half-open if the timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// stateLocked advances an open breaker to half-open when Timeout has
// passed. Caller holds mu.
func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.trippedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// admit decides whether a call may proceed, counting it as a probe when
// half-open. Returns ErrCircuitOpen when the call must be rejected.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.stateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

// settle records an admitted call's outcome and moves the state machine.
func (b *Breaker) settle(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if failed {
		b.streak++
		if b.state == StateHalfOpen || b.streak >= b.opts.FailThreshold {
			b.state = StateOpen
			b.trippedAt = b.now()
			b.streak = 0
			b.probes = 0
		}
		return
	}
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.streak = 0
}

// Call runs f through the breaker, returning ErrCircuitOpen without
// invoking f when the breaker is rejecting.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.settle(err != nil)
	return err
}

// CallResult is Call for fn.Result-shaped work.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.admit(); err != nil {
		return fn.Err[T](err)
	}
	res := f(ctx)
	b.settle(res.IsErr())
	return res
}

// BreakerStage wraps a pipeline stage so every invocation passes through b.
func BreakerStage[In, Out any](b *Breaker, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		return CallResult(b, ctx, func(ctx context.Context) fn.Result[Out] {
			return stage(ctx, in)
		})
	}
}
