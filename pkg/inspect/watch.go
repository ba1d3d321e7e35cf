package inspect

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/atom/pkg/atom"
)

// Frame is one message of a watch stream.
type Frame struct {
	Subscription string `json:"subscription"`
	Atom         string `json:"atom"`
	Value        any    `json:"value"`
	Error        string `json:"error,omitempty"`
	Pending      bool   `json:"pending,omitempty"`
	Seq          uint64 `json:"seq"`
}

// watchBuffer is the number of frames queued per connection before new
// ones are dropped.
const watchBuffer = 32

func (i *Inspector) handleWatch(w http.ResponseWriter, r *http.Request) {
	e, ok := i.lookup(w, r)
	if !ok {
		return
	}

	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Warn("websocket upgrade failed", "atom", e.Name, "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	logger := i.logger.With("subscription", id, "atom", e.Name)
	frames := make(chan Frame, watchBuffer)

	stop, err := i.subscribe(r.Context(), e, id, frames)
	if err != nil {
		logger.Warn("watch subscribe failed", "error", err)
		return
	}
	logger.Debug("watch started")

	// The read loop only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		stop()
		logger.Debug("watch stopped")
	}()

	for {
		select {
		case f := <-frames:
			conn.SetWriteDeadline(time.Now().Add(i.config.WriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				logger.Debug("watch write failed", "error", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// subscribe queues the first frame of e and registers a listener that feeds
// frames on every change. stop removes the listener on the loop.
//
// When ctx ends, Do may return while the request is still queued. The
// request then checks ctx itself, and stop runs anyway so a listener added
// in between is removed.
func (i *Inspector) subscribe(ctx context.Context, e Entry, id string, frames chan<- Frame) (stop func(), err error) {
	logger := i.logger.With("subscription", id, "atom", e.Name)

	var seq uint64
	frameOf := func(s *atom.Store) Frame {
		f := Frame{Subscription: id, Atom: e.Name, Seq: seq}
		seq++
		v, err := s.ReadAny(e.Atom)
		switch {
		case errors.Is(err, atom.ErrPending):
			f.Pending = true
		case err != nil:
			f.Error = err.Error()
		default:
			f.Value = v
		}
		return f
	}

	// unsubscribe is only touched on the loop goroutine.
	var unsubscribe func()
	stop = func() {
		dctx, cancel := detached()
		defer cancel()
		if err := i.loop.Do(dctx, func(*atom.Store) error {
			if unsubscribe != nil {
				unsubscribe()
				unsubscribe = nil
			}
			return nil
		}); err != nil {
			logger.Warn("watch unsubscribe failed", "error", err)
		}
	}

	err = i.loop.Do(ctx, func(s *atom.Store) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		frames <- frameOf(s)
		unsubscribe = s.Subscribe(e.Atom, func() {
			select {
			case frames <- frameOf(s):
			default:
				logger.Warn("watch buffer full, dropping frame")
			}
		})
		return nil
	})
	if err != nil {
		if !errors.Is(err, atom.ErrLoopClosed) {
			stop()
		}
		return nil, err
	}
	return stop, nil
}
