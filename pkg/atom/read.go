package atom

import (
	"errors"
	"time"
)

// getter is the tracked Getter handed to one evaluation of a derived atom.
type getter struct {
	s     *Store
	owner *node
	deps  map[*node]uint64

	// waiting lists the futures of pending dependencies.
	waiting []*promise

	// closed is set once the evaluation returns. Later reads through a
	// retained getter are untracked.
	closed bool
}

func (g *getter) get(n *node) (any, error) {
	if g.closed {
		return g.s.get(n)
	}
	st, err := g.s.readAtom(n)
	if err != nil {
		return nil, err
	}
	g.deps[n] = st.version
	if st.future != nil {
		g.waiting = append(g.waiting, st.future)
	}
	return valueOf(n, st)
}

func valueOf(n *node, st *atomState) (any, error) {
	if st.future != nil {
		return nil, &PendingError{Atom: n, future: st.future}
	}
	if st.err != nil {
		return nil, st.err
	}
	return st.value, nil
}

// readAtom returns the current record of n, evaluating it when stale. The
// only error it returns is a *CycleError; evaluation errors are recorded on
// the returned state.
func (s *Store) readAtom(n *node) (*atomState, error) {
	if s.onStack[n] {
		return nil, s.cycle(n)
	}
	if n.prim {
		return s.primitiveState(n), nil
	}
	if st := s.states[n]; st != nil && s.isFresh(n, st) {
		return st, nil
	}
	return s.evaluate(n)
}

func (s *Store) primitiveState(n *node) *atomState {
	st := s.states[n]
	if st == nil {
		st = newAtomState()
		st.value = s.initialValue(n)
		st.hasValue = true
		st.version = s.tick()
		s.states[n] = st
	}
	return st
}

func (s *Store) cycle(n *node) *CycleError {
	path := []Definition{}
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == n {
			for _, x := range s.stack[i:] {
				path = append(path, x)
			}
			break
		}
	}
	return &CycleError{Path: append(path, n)}
}

// isFresh reports whether the cached result of n can be returned without
// running its read function. A mounted error is kept until a dependency
// changes; an unmounted one is always re-evaluated.
func (s *Store) isFresh(n *node, st *atomState) bool {
	if _, ok := s.mounts[n]; ok && !s.dirty[n] {
		return true
	}
	if st.err != nil || (!st.hasValue && st.future == nil) {
		return false
	}
	for d, seen := range st.deps {
		ds, err := s.readAtom(d)
		if err != nil || ds.version != seen {
			return false
		}
	}
	delete(s.dirty, n)
	return true
}

// evaluate runs the read function of n and commits the result.
func (s *Store) evaluate(n *node) (*atomState, error) {
	g := &getter{s: s, owner: n, deps: make(map[*node]uint64)}
	start := time.Now()

	v, err := s.runRead(n, g)

	var ce *CycleError
	if errors.As(err, &ce) {
		s.emit(Event{Type: EventEvaluate, Atom: n, Start: start, Duration: time.Since(start), Result: ResultError, Err: err})
		return nil, err
	}

	st := s.states[n]
	if st == nil {
		st = newAtomState()
		s.states[n] = st
	}
	s.setDeps(n, st, g.deps)

	before := st.version
	var result string
	switch {
	case err == nil:
		if p, ok := v.(*promise); ok {
			result = s.commitPromise(n, st, p)
		} else {
			result = s.commitValue(n, st, v)
		}
	case errors.Is(err, ErrPending):
		var pe *PendingError
		if errors.As(err, &pe) && pe.future != nil {
			g.waiting = append(g.waiting, pe.future)
		}
		result = s.commitWaiting(n, st, g.waiting)
	default:
		result = s.commitError(n, st, err)
	}

	delete(s.dirty, n)
	if _, ok := s.mounts[n]; ok {
		s.remount(n, st)
	}

	if result == ResultError {
		s.logger.Debug("evaluation failed", "atom", n.String(), "error", err)
	}
	s.emit(Event{
		Type:     EventEvaluate,
		Atom:     n,
		Start:    start,
		Duration: time.Since(start),
		Result:   result,
		Err:      st.err,
		Version:  st.version,
		Changed:  st.version != before,
	})
	return st, nil
}

func (s *Store) runRead(n *node, g *getter) (any, error) {
	s.stack = append(s.stack, n)
	s.onStack[n] = true
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		delete(s.onStack, n)
		g.closed = true
	}()
	return n.read(g)
}

// setDeps replaces the dependency set of n and patches the inverse index.
func (s *Store) setDeps(n *node, st *atomState, deps map[*node]uint64) {
	for d := range st.deps {
		if _, ok := deps[d]; ok {
			continue
		}
		if ds := s.states[d]; ds != nil {
			delete(ds.dependents, n)
		}
	}
	for d := range deps {
		if ds := s.states[d]; ds != nil {
			ds.dependents[n] = struct{}{}
		}
	}
	st.deps = deps
}

// bump advances the version of n and pushes invalidation to its mounted
// dependents.
func (s *Store) bump(n *node, st *atomState) {
	st.version = s.tick()
	if _, ok := s.changedSet[n]; !ok {
		s.changedSet[n] = struct{}{}
		s.changed = append(s.changed, n)
	}
	s.invalidate(n)
}

func (s *Store) invalidate(n *node) {
	m := s.mounts[n]
	if m == nil {
		return
	}
	for d := range m.dependents {
		if !s.dirty[d] {
			s.dirty[d] = true
			s.invalidate(d)
		}
	}
}

func (s *Store) commitValue(n *node, st *atomState, v any) string {
	if st.hasValue && s.equal(n, st.value, v) {
		return ResultUnchanged
	}
	st.value = v
	st.hasValue = true
	st.err = nil
	st.source = nil
	s.bump(n, st)
	if f := st.future; f != nil {
		st.future = nil
		f.settle(v, nil)
	}
	return ResultValue
}

func (s *Store) commitError(n *node, st *atomState, err error) string {
	if st.err != nil && st.future == nil && defaultEquals(st.err, err) {
		st.source = nil
		return ResultError
	}
	st.value = nil
	st.hasValue = false
	st.err = err
	st.source = nil
	s.bump(n, st)
	if f := st.future; f != nil {
		st.future = nil
		f.settle(nil, err)
	}
	return ResultError
}

// enterPending switches st to pending, keeping an existing owned future.
func (s *Store) enterPending(n *node, st *atomState) {
	wasPending := st.future != nil
	st.value = nil
	st.hasValue = false
	st.err = nil
	if !wasPending {
		st.future = newPromise()
		s.bump(n, st)
	}
}

// commitPromise records the future returned by an async read function.
func (s *Store) commitPromise(n *node, st *atomState, p *promise) string {
	if v, err, ok := p.result(); ok {
		if err != nil {
			return s.commitError(n, st, err)
		}
		return s.commitValue(n, st, v)
	}
	if st.source == p && st.pending() {
		return ResultPending
	}
	s.enterPending(n, st)
	st.source = p
	p.then(func(v any, err error) {
		s.schedule(func() { s.settle(n, p, v, err) })
	})
	return ResultPending
}

// commitWaiting records that n is blocked on pending dependencies. It is
// re-read once any of them settles.
func (s *Store) commitWaiting(n *node, st *atomState, waiting []*promise) string {
	s.enterPending(n, st)
	st.source = nil
	fut := st.future
	for _, w := range waiting {
		w.then(func(any, error) {
			s.schedule(func() { s.retry(n, fut) })
		})
	}
	return ResultPending
}

// settle commits the result of the async read function of n. Results from a
// promise other than the one the record awaits are discarded.
func (s *Store) settle(n *node, p *promise, v any, err error) {
	s.begin()
	defer s.end()

	st := s.states[n]
	if st == nil || st.source != p {
		s.logger.Debug("stale settlement discarded", "atom", n.String())
		s.emit(Event{Type: EventDiscard, Atom: n, Start: time.Now(), Err: err})
		return
	}
	st.source = nil

	result := ResultValue
	if err != nil {
		result = s.commitError(n, st, err)
	} else {
		result = s.commitValue(n, st, v)
	}
	s.emit(Event{Type: EventSettle, Atom: n, Start: time.Now(), Result: result, Err: err, Version: st.version})
}

func (s *Store) retry(n *node, fut *promise) {
	s.begin()
	defer s.end()

	st := s.states[n]
	if st == nil || st.future != fut {
		return
	}
	s.readAtom(n)
}

// ReadFuture returns the result of a as a future. It resolves immediately
// unless a is pending.
func ReadFuture[T any](s *Store, a Readable[T]) *Future[T] {
	s.begin()
	defer s.end()

	st, err := s.readAtom(a.atomNode())
	switch {
	case err != nil:
		return Rejected[T](err)
	case st.future != nil:
		return &Future[T]{p: st.future}
	case st.err != nil:
		return Rejected[T](st.err)
	}
	return Resolved(cast[T](st.value))
}
