package atom

// Subscribe registers fn to run after every change of the resolved value of
// a, and mounts a together with its dependencies. fn is not called for the
// current value.
//
// The returned function removes the subscription. Calling it more than once
// is a no-op.
func (s *Store) Subscribe(a Definition, fn func()) (unsubscribe func()) {
	n := a.atomNode()

	s.begin()
	m := s.mount(n)
	l := &listener{fn: fn}
	m.listeners = append(m.listeners, l)
	s.end()

	done := false
	return func() {
		if done {
			return
		}
		done = true

		s.begin()
		defer s.end()
		if m := s.mounts[n]; m != nil {
			m.removeListener(l)
			s.tryUnmount(n)
		}
	}
}
