package atom

import "time"

// setter is the Setter handed to a write function.
type setter struct {
	s     *Store
	owner *node
}

func (w *setter) set(n *node, arg any) error {
	return w.s.write(w.owner, n, arg)
}

// write applies arg to n. owner is the atom whose write function is running,
// or nil for a root write.
func (s *Store) write(owner, n *node, arg any) error {
	if n != owner && n.startWrite != nil {
		_, err, _ := s.writeAsync(n, arg).result()
		return err
	}
	if n == owner || n.write == nil {
		if n.prim {
			return s.setPrimitive(n, arg)
		}
		err := &NotWritableError{Atom: n}
		s.emit(Event{Type: EventWrite, Atom: n, Start: time.Now(), Result: ResultError, Err: err})
		return err
	}

	start := time.Now()
	err := n.write(s, &setter{s: s, owner: n}, arg)
	result := ResultValue
	if err != nil {
		result = ResultError
	}
	s.emit(Event{Type: EventWrite, Atom: n, Start: start, Duration: time.Since(start), Result: result, Err: err})
	return err
}

// writeAsync starts the asynchronous write of n and returns its completion.
// The result is committed through the dispatcher, like a settlement.
func (s *Store) writeAsync(n *node, arg any) *promise {
	start := time.Now()
	done := newPromise()

	work := n.startWrite(s, arg)
	if work == nil {
		s.emit(Event{Type: EventWrite, Atom: n, Start: start, Result: ResultError, Err: errNilWriteFuture})
		done.settle(nil, errNilWriteFuture)
		return done
	}
	work.then(func(v any, err error) {
		s.schedule(func() {
			if err == nil {
				err = s.commitWrite(n, v)
			}
			result := ResultValue
			if err != nil {
				result = ResultError
			}
			s.emit(Event{Type: EventWrite, Atom: n, Start: start, Duration: time.Since(start), Result: result, Err: err})
			if err != nil {
				done.settle(nil, err)
				return
			}
			done.settle(struct{}{}, nil)
		})
	})
	return done
}

func (s *Store) commitWrite(n *node, v any) error {
	s.begin()
	defer s.end()
	return n.write(s, &setter{s: s, owner: n}, v)
}

// setPrimitive stores a new value for a primitive atom. arg is an Update or
// a plain replacement value.
func (s *Store) setPrimitive(n *node, arg any) error {
	start := time.Now()
	st := s.primitiveState(n)

	next := arg
	if u, ok := arg.(updater); ok {
		next = u.apply(st.value)
	}

	result := ResultUnchanged
	if !s.equal(n, st.value, next) {
		st.value = next
		s.bump(n, st)
		result = ResultValue
	}
	s.emit(Event{Type: EventWrite, Atom: n, Start: start, Duration: time.Since(start), Result: result, Version: st.version})
	return nil
}

// =============================================================================
// Flush
// =============================================================================

// flush recomputes mounted atoms affected by changes, runs queued lifecycle
// callbacks and notifies listeners. It repeats until nothing is left, since
// every phase may produce more work.
func (s *Store) flush() {
	if s.flushing {
		return
	}
	s.flushing = true
	defer func() { s.flushing = false }()

	for len(s.changed) > 0 || len(s.mountQueue) > 0 || len(s.cleanupQueue) > 0 || len(s.deferred) > 0 {
		changed := s.changed
		s.changed = nil
		clear(s.changedSet)

		order := s.affected(changed)
		for _, n := range order {
			if _, ok := s.mounts[n]; ok {
				if _, err := s.readAtom(n); err != nil {
					s.logger.Debug("recompute failed", "atom", n.String(), "error", err)
				}
			}
		}

		cleanups := s.cleanupQueue
		s.cleanupQueue = nil
		for _, fn := range cleanups {
			fn()
		}

		mounts := s.mountQueue
		s.mountQueue = nil
		for _, fn := range mounts {
			fn()
		}

		s.notify(order)

		deferred := s.deferred
		s.deferred = nil
		for _, fn := range deferred {
			fn()
		}
	}
}

// affected returns changed atoms and their transitive mounted dependents in
// topological order, dependencies first.
func (s *Store) affected(changed []*node) []*node {
	if len(changed) == 0 {
		return nil
	}
	visited := make(map[*node]bool)
	post := make([]*node, 0, len(changed))

	var visit func(n *node)
	visit = func(n *node) {
		if visited[n] {
			return
		}
		visited[n] = true
		if m := s.mounts[n]; m != nil {
			for d := range m.dependents {
				visit(d)
			}
		}
		post = append(post, n)
	}
	for _, n := range changed {
		visit(n)
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// notify calls the listeners of every mounted atom in order whose version
// moved past what its listeners last saw.
func (s *Store) notify(order []*node) {
	for _, n := range order {
		m := s.mounts[n]
		st := s.states[n]
		if m == nil || st == nil || st.version == m.notified {
			continue
		}
		m.notified = st.version
		if len(m.listeners) == 0 {
			continue
		}
		start := time.Now()
		listeners := m.listeners
		for _, l := range listeners {
			l.fn()
		}
		s.emit(Event{Type: EventNotify, Atom: n, Start: start, Duration: time.Since(start), Version: st.version, Listeners: len(listeners)})
	}
}
