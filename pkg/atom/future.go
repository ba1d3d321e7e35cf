package atom

import (
	"context"
	"fmt"
	"sync"
)

// promise is the type-erased settle-once cell behind Future.
type promise struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	callbacks []func(v any, err error)
}

func newPromise() *promise {
	return &promise{done: make(chan struct{})}
}

// settle records the result and runs queued callbacks on the calling
// goroutine. Only the first call has any effect.
func (p *promise) settle(v any, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.value = v
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// then runs fn once p settles. If p already settled, fn runs immediately.
func (p *promise) then(fn func(v any, err error)) {
	p.mu.Lock()
	if !p.settled {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	fn(v, err)
}

// result returns the settled result and whether p has settled.
func (p *promise) result() (any, error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err, p.settled
}

// Future is a pending computation that settles once with a value or an error.
// Futures may be settled and awaited from any goroutine.
type Future[T any] struct {
	p *promise
}

// NewFuture creates an unsettled future with its resolve and reject
// functions. Calls after the first settlement are ignored.
func NewFuture[T any]() (f *Future[T], resolve func(T), reject func(error)) {
	p := newPromise()
	return &Future[T]{p: p},
		func(v T) { p.settle(v, nil) },
		func(err error) { p.settle(nil, err) }
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	p := newPromise()
	p.settle(v, nil)
	return &Future[T]{p: p}
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	p := newPromise()
	p.settle(nil, err)
	return &Future[T]{p: p}
}

// Go runs fn on a new goroutine and settles the future with its result.
// A panic in fn rejects the future.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	p := newPromise()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.settle(nil, fmt.Errorf("atom: future panic: %v", r))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			p.settle(nil, err)
			return
		}
		p.settle(v, nil)
	}()
	return &Future[T]{p: p}
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.p.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	_, _, ok := f.p.result()
	return ok
}

// Result returns the settled value. It returns ErrPending while the future
// is unsettled.
func (f *Future[T]) Result() (T, error) {
	v, err, ok := f.p.result()
	if !ok {
		var zero T
		return zero, ErrPending
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v), nil
}

// Wait blocks until the future settles or ctx is done.
//
// Waiting on the goroutine that owns the store deadlocks when the future is
// settled by the store itself; wait from another goroutine.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.p.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
