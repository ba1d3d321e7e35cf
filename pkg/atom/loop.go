package atom

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Loop owns a Store and runs every operation on it from one goroutine.
// Future settlements are routed into the same queue, so async atoms may be
// resolved from any goroutine.
//
// Example:
//
//	loop := atom.NewLoop()
//	go loop.Run(ctx)
//	defer loop.Close()
//
//	err := loop.Do(ctx, func(s *atom.Store) error {
//	    return count.Set(s, 5)
//	})
type Loop struct {
	store    *Store
	requests chan func()
	done     chan struct{}
	once     sync.Once
	logger   *slog.Logger
}

// NewLoop creates a loop around a new store configured by opts. Any
// WithDispatcher option is replaced by the loop's own queue.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{done: make(chan struct{})}
	opts = append(opts[:len(opts):len(opts)], WithDispatcher(l.dispatch))
	l.store = NewStore(opts...)
	l.requests = make(chan func(), l.store.cfg.queueSize)
	l.logger = l.store.logger.With("loop", true)
	return l
}

// Store returns the loop's store. It may only be used inside Do and Post
// callbacks.
func (l *Loop) Store() *Store {
	return l.store
}

// Run serves requests until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.requests:
			l.execute(fn)
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		}
	}
}

// execute runs one request with panic recovery.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// dispatch is the store dispatcher. Settlements are never dropped: when the
// queue is full the send moves to its own goroutine.
func (l *Loop) dispatch(fn func()) {
	select {
	case l.requests <- fn:
	case <-l.done:
	default:
		go func() {
			select {
			case l.requests <- fn:
			case <-l.done:
			}
		}()
	}
}

// Do runs fn on the loop and waits for it to return. A panic in fn is
// returned as an error. Calling Do from inside a loop callback deadlocks.
func (l *Loop) Do(ctx context.Context, fn func(s *Store) error) error {
	result := make(chan error, 1)
	req := func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("dispatch panic",
					"panic", r,
					"stack", string(debug.Stack()))
				err = fmt.Errorf("atom: loop request panic: %v", r)
			}
			result <- err
		}()
		err = fn(l.store)
	}

	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	}
}

// Post queues fn without waiting. It reports false when the loop is closed
// or the queue is full.
func (l *Loop) Post(fn func(s *Store)) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.requests <- func() { fn(l.store) }:
		return true
	case <-l.done:
		return false
	default:
		l.logger.Warn("loop queue full, dropping request")
		return false
	}
}

// Close stops Run. Queued requests are discarded.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}
