package atom

import "time"

// mount marks n as observed, mounting its dependencies first. The onMount
// hook is queued and runs in the next flush, after the mount structure is
// complete.
func (s *Store) mount(n *node) *mounted {
	if m := s.mounts[n]; m != nil {
		return m
	}

	st, err := s.readAtom(n)
	if err != nil {
		s.logger.Debug("mount read failed", "atom", n.String(), "error", err)
	}

	m := newMounted()
	s.mounts[n] = m
	if st != nil {
		for d := range st.deps {
			dm := s.mount(d)
			dm.dependents[n] = struct{}{}
			m.deps[d] = struct{}{}
		}
		m.notified = st.version
	}
	s.emit(Event{Type: EventMount, Atom: n, Start: time.Now()})

	if n.onMount != nil {
		s.mountQueue = append(s.mountQueue, func() { s.runOnMount(n, m) })
	}
	return m
}

func (s *Store) runOnMount(n *node, m *mounted) {
	if s.mounts[n] != m {
		return
	}
	cleanup := n.onMount(func(arg any) error {
		return s.set(n, arg)
	})
	if cleanup == nil {
		return
	}
	if s.mounts[n] != m {
		// Unmounted by its own hook.
		s.cleanupQueue = append(s.cleanupQueue, cleanup)
		return
	}
	m.cleanup = cleanup
}

// tryUnmount unmounts n once nothing observes it, then walks down to its
// dependencies.
func (s *Store) tryUnmount(n *node) {
	m := s.mounts[n]
	if m == nil || len(m.listeners) > 0 || len(m.dependents) > 0 {
		return
	}
	delete(s.mounts, n)
	delete(s.dirty, n)
	if m.cleanup != nil {
		s.cleanupQueue = append(s.cleanupQueue, m.cleanup)
	}
	s.emit(Event{Type: EventUnmount, Atom: n, Start: time.Now()})

	for d := range m.deps {
		if dm := s.mounts[d]; dm != nil {
			delete(dm.dependents, n)
			s.tryUnmount(d)
		}
	}
	s.evict(n)
}

// evict drops the record of an unmounted atom along with every cached
// dependent that is not mounted. Primitive records are kept unless
// WithPrimitiveEviction is set.
func (s *Store) evict(n *node) {
	st := s.states[n]
	if st == nil {
		return
	}
	if _, ok := s.mounts[n]; ok {
		return
	}
	if n.prim && !s.cfg.evictPrimitives {
		return
	}

	delete(s.states, n)
	delete(s.dirty, n)
	for d := range st.deps {
		if ds := s.states[d]; ds != nil {
			delete(ds.dependents, n)
		}
	}
	s.logger.Debug("atom evicted", "atom", n.String())

	for d := range st.dependents {
		if _, ok := s.mounts[d]; !ok {
			s.evict(d)
		}
	}

	st.source = nil
	if f := st.future; f != nil {
		st.future = nil
		f.settle(nil, ErrEvicted)
	}
}

// remount reconciles the mounted dependencies of n with the dependency set
// of its latest evaluation.
func (s *Store) remount(n *node, st *atomState) {
	m := s.mounts[n]
	for d := range st.deps {
		if _, ok := m.deps[d]; ok {
			continue
		}
		dm := s.mount(d)
		dm.dependents[n] = struct{}{}
		m.deps[d] = struct{}{}
	}
	for d := range m.deps {
		if _, ok := st.deps[d]; ok {
			continue
		}
		delete(m.deps, d)
		if dm := s.mounts[d]; dm != nil {
			delete(dm.dependents, n)
			s.tryUnmount(d)
		}
	}
}
