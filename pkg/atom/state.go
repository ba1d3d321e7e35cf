package atom

// atomState is the per-store record of one atom.
//
// Exactly one of three shapes holds at a time: a settled value (hasValue),
// an error from the last evaluation (err), or pending (future != nil).
type atomState struct {
	value    any
	hasValue bool
	err      error

	// future is the store-owned promise handed to readers while the atom is
	// pending. It survives re-evaluations until the atom commits a value or
	// an error.
	future *promise

	// source is the async result being awaited. A settlement from any other
	// promise is stale.
	source *promise

	// version is drawn from the store clock and advances whenever the
	// observable result changes.
	version uint64

	// deps maps each atom read by the last evaluation to the version seen.
	deps map[*node]uint64

	// dependents is the strict inverse of deps across all records.
	dependents map[*node]struct{}
}

func newAtomState() *atomState {
	return &atomState{
		deps:       make(map[*node]uint64),
		dependents: make(map[*node]struct{}),
	}
}

func (st *atomState) pending() bool {
	return st.future != nil
}

// listener is a subscription callback.
type listener struct {
	fn func()
}

// mounted is the bookkeeping of an atom observed by a subscription, directly
// or through a mounted dependent.
type mounted struct {
	listeners  []*listener
	deps       map[*node]struct{}
	dependents map[*node]struct{}

	// cleanup is what onMount returned.
	cleanup func()

	// notified is the version listeners last saw.
	notified uint64
}

func newMounted() *mounted {
	return &mounted{
		deps:       make(map[*node]struct{}),
		dependents: make(map[*node]struct{}),
	}
}

func (m *mounted) removeListener(l *listener) {
	for i, x := range m.listeners {
		if x == l {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return
		}
	}
}
