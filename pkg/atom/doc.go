// Package atom provides a reactive value store built from atoms.
//
// An atom is an immutable, identity-keyed definition of a cell. Primitive
// atoms hold a value; derived atoms compute one from other atoms. Values live
// in a Store, which caches them, tracks which atoms each evaluation read, and
// recomputes dependents when a dependency changes.
//
// # Core Types
//
// Primitive[T] is a settable cell with an initial value:
//
//	count := atom.New(1)
//	store := atom.NewStore()
//	count.Set(store, 5)
//	count.Update(store, func(n int) int { return n + 1 })
//
// Atom[T] is a derived, read-only cell:
//
//	doubled := atom.Derived(func(get atom.Getter) (int, error) {
//	    n, err := count.Get(get)
//	    return n * 2, err
//	})
//	v, err := doubled.Get(store) // 12
//
// WritableAtom[T, A] adds a write function that can set other atoms:
//
//	reset := atom.WriteOnly(func(get atom.Getter, set atom.Setter, _ struct{}) error {
//	    return count.Set(set, 0)
//	})
//
// Dependencies are tracked per evaluation, so conditional reads produce a
// different dependency set on every run.
//
// # Subscriptions and Mounting
//
// Subscribe marks an atom as observed. Observed atoms and everything they
// depend on are mounted: they are kept up to date on every write and their
// OnMount hooks run. Unsubscribing the last observer unmounts the atom and
// evicts its cached value.
//
//	unsubscribe := store.Subscribe(doubled, func() {
//	    fmt.Println("doubled changed")
//	})
//	defer unsubscribe()
//
// # Async Atoms
//
// Async atoms return a Future. Reading one before it settles yields
// ErrPending; when the future settles the store commits the value and notifies
// subscribers as if the atom had been written.
//
// # Thread Safety
//
// A Store is owned by a single goroutine. Use Loop to share a store between
// goroutines; it serializes every operation on one engine goroutine and
// routes future settlements through the same queue.
package atom
