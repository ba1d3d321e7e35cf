package atom

import (
	"strconv"
	"sync/atomic"
)

// node is the type-erased definition behind every typed atom handle.
// It is never mutated after construction; option methods clone it.
type node struct {
	id    uint64
	label string

	// prim marks a primitive atom; init is its initial value.
	prim bool
	init any

	// read computes a derived atom's value. Nil for primitives.
	read func(g *getter) (any, error)

	// write handles Set for the atom. Nil means the default primitive
	// write for primitives and not writable for derived atoms.
	write func(get Getter, set Setter, arg any) error

	// startWrite begins an asynchronous write. The settled result is then
	// passed to write. Nil for synchronous writes.
	startWrite func(get Getter, arg any) *promise

	// onMount runs when the atom becomes mounted in a store.
	onMount func(setSelf func(arg any) error) func()

	// equal overrides the store equality policy for this atom.
	equal func(a, b any) bool
}

// lastID numbers definitions across all stores. IDs start at 1.
var lastID atomic.Uint64

func newNode() *node {
	return &node{id: lastID.Add(1)}
}

// clone returns a copy of n with a fresh identity.
func (n *node) clone(apply func(c *node)) *node {
	c := *n
	c.id = lastID.Add(1)
	apply(&c)
	return &c
}

func (n *node) atomNode() *node { return n }

// ID returns the unique handle of the definition.
func (n *node) ID() uint64 { return n.id }

// String returns the debug label, or a generated name when unlabeled.
func (n *node) String() string {
	if n.label != "" {
		return n.label
	}
	return "atom" + strconv.FormatUint(n.id, 10)
}

// Definition is any atom definition. It is the graph key used by a Store.
type Definition interface {
	atomNode() *node
	ID() uint64
	String() string
}

// Readable is a definition whose value can be read as T.
type Readable[T any] interface {
	Definition
	Get(get Getter) (T, error)
}

// Writable is a readable definition that accepts writes of A.
type Writable[T, A any] interface {
	Readable[T]
	Write(set Setter, arg A) error
}

// ReadFunc computes a derived value. Every atom passed to get is recorded as
// a dependency of the evaluation.
type ReadFunc[T any] func(get Getter) (T, error)

// WriteFunc handles a write. Reads through get are untracked; set writes
// other atoms as part of the same batch.
type WriteFunc[A any] func(get Getter, set Setter, arg A) error

// AsyncWriteFunc starts the asynchronous part of a write. Reads through get
// are untracked.
type AsyncWriteFunc[A, R any] func(get Getter, arg A) *Future[R]

// Update is the write argument of a primitive atom: either a replacement
// value or a function of the previous value.
type Update[T any] struct {
	next T
	fn   func(T) T
}

// To returns an update that replaces the value with v.
func To[T any](v T) Update[T] {
	return Update[T]{next: v}
}

// With returns an update that derives the new value from the previous one.
func With[T any](fn func(prev T) T) Update[T] {
	return Update[T]{fn: fn}
}

// Apply returns the value the update produces from prev.
func (u Update[T]) Apply(prev T) T {
	if u.fn != nil {
		return u.fn(prev)
	}
	return u.next
}

func (u Update[T]) apply(prev any) any {
	return u.Apply(cast[T](prev))
}

// updater is the type-erased view of Update used by the write engine.
type updater interface {
	apply(prev any) any
}

// cast converts a stored value to T, mapping nil to the zero value.
func cast[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

func read[T any](get Getter, n *node) (T, error) {
	v, err := get.get(n)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v), nil
}

func equalsOf[T any](fn func(a, b T) bool) func(a, b any) bool {
	if fn == nil {
		return nil
	}
	return func(a, b any) bool {
		return fn(cast[T](a), cast[T](b))
	}
}

// =============================================================================
// Primitive
// =============================================================================

// Primitive is a settable atom holding a value of type T.
type Primitive[T any] struct {
	*node
}

// New creates a primitive atom with the given initial value.
func New[T any](initial T) *Primitive[T] {
	n := newNode()
	n.prim = true
	n.init = initial
	return &Primitive[T]{node: n}
}

// Get reads the atom's current value.
func (p *Primitive[T]) Get(get Getter) (T, error) {
	return read[T](get, p.node)
}

// Write applies an update through the atom's write function.
func (p *Primitive[T]) Write(set Setter, u Update[T]) error {
	return set.set(p.node, u)
}

// Set replaces the atom's value.
func (p *Primitive[T]) Set(set Setter, v T) error {
	return set.set(p.node, To(v))
}

// Update derives the atom's new value from its previous value.
func (p *Primitive[T]) Update(set Setter, fn func(prev T) T) error {
	return set.set(p.node, With(fn))
}

// Initial returns the value the atom starts with in a new store.
func (p *Primitive[T]) Initial() T {
	return cast[T](p.init)
}

// WithLabel returns a copy of the atom carrying a debug label.
func (p *Primitive[T]) WithLabel(label string) *Primitive[T] {
	return &Primitive[T]{node: p.clone(func(c *node) { c.label = label })}
}

// WithEquals returns a copy of the atom using fn to detect no-op writes.
func (p *Primitive[T]) WithEquals(fn func(a, b T) bool) *Primitive[T] {
	return &Primitive[T]{node: p.clone(func(c *node) { c.equal = equalsOf(fn) })}
}

// WithOnMount returns a copy of the atom with a mount hook. The hook
// receives a setter bound to the atom and may return a cleanup that runs
// when the atom unmounts.
func (p *Primitive[T]) WithOnMount(fn func(setSelf func(Update[T]) error) func()) *Primitive[T] {
	return &Primitive[T]{node: p.clone(func(c *node) {
		c.onMount = func(setSelf func(any) error) func() {
			return fn(func(u Update[T]) error { return setSelf(u) })
		}
	})}
}

// WithWrite returns a copy of the atom with a custom write function. Inside
// it, setting the atom itself stores the value directly.
func (p *Primitive[T]) WithWrite(write WriteFunc[Update[T]]) *Primitive[T] {
	return &Primitive[T]{node: p.clone(func(c *node) {
		c.write = func(get Getter, set Setter, arg any) error {
			u, ok := arg.(Update[T])
			if !ok {
				u = To(cast[T](arg))
			}
			return write(get, set, u)
		}
	})}
}

// =============================================================================
// Derived
// =============================================================================

// Atom is a read-only derived atom.
type Atom[T any] struct {
	*node
}

// Derived creates a read-only atom computed by read.
func Derived[T any](read ReadFunc[T]) *Atom[T] {
	n := newNode()
	n.read = func(g *getter) (any, error) {
		return read(g)
	}
	return &Atom[T]{node: n}
}

// Async creates a derived atom whose value is produced by a future. The
// read function runs synchronously and must record its dependencies before
// returning; the future may settle later from any goroutine.
func Async[T any](read func(get Getter) *Future[T]) *Atom[T] {
	n := newNode()
	n.read = func(g *getter) (any, error) {
		f := read(g)
		if f == nil {
			return nil, errNilFuture
		}
		return f.p, nil
	}
	return &Atom[T]{node: n}
}

// Get reads the atom's current value.
func (a *Atom[T]) Get(get Getter) (T, error) {
	return read[T](get, a.node)
}

// WithLabel returns a copy of the atom carrying a debug label.
func (a *Atom[T]) WithLabel(label string) *Atom[T] {
	return &Atom[T]{node: a.clone(func(c *node) { c.label = label })}
}

// WithEquals returns a copy of the atom using fn to decide whether a
// recomputed value is a change. Equal results keep the previous value.
func (a *Atom[T]) WithEquals(fn func(a, b T) bool) *Atom[T] {
	return &Atom[T]{node: a.clone(func(c *node) { c.equal = equalsOf(fn) })}
}

// =============================================================================
// Writable
// =============================================================================

// WritableAtom is a derived atom with a write function.
type WritableAtom[T, A any] struct {
	*node
}

// DerivedWritable creates an atom computed by read and written by write.
func DerivedWritable[T, A any](read ReadFunc[T], write WriteFunc[A]) *WritableAtom[T, A] {
	n := newNode()
	n.read = func(g *getter) (any, error) {
		return read(g)
	}
	n.write = func(get Getter, set Setter, arg any) error {
		return write(get, set, cast[A](arg))
	}
	return &WritableAtom[T, A]{node: n}
}

// WriteOnly creates an atom that only has a write function. Reading it
// yields the zero struct.
func WriteOnly[A any](write WriteFunc[A]) *WritableAtom[struct{}, A] {
	return DerivedWritable[struct{}, A](func(Getter) (struct{}, error) {
		return struct{}{}, nil
	}, write)
}

// WriteAsync creates a write-only atom whose writes complete later. start
// runs synchronously and returns the pending work. Once it resolves, commit
// runs on the store through the dispatcher with the result and may set other
// atoms. A rejected start skips commit.
//
// Set on such an atom only reports a start that failed at once; use
// WriteFuture to wait for the outcome.
func WriteAsync[A, R any](start AsyncWriteFunc[A, R], commit WriteFunc[R]) *WritableAtom[struct{}, A] {
	n := newNode()
	n.read = func(*getter) (any, error) {
		return struct{}{}, nil
	}
	n.startWrite = func(get Getter, arg any) *promise {
		f := start(get, cast[A](arg))
		if f == nil {
			return nil
		}
		return f.p
	}
	n.write = func(get Getter, set Setter, v any) error {
		return commit(get, set, cast[R](v))
	}
	return &WritableAtom[struct{}, A]{node: n}
}

// Get reads the atom's current value.
func (w *WritableAtom[T, A]) Get(get Getter) (T, error) {
	return read[T](get, w.node)
}

// Write runs the atom's write function with arg.
func (w *WritableAtom[T, A]) Write(set Setter, arg A) error {
	return set.set(w.node, arg)
}

// WithLabel returns a copy of the atom carrying a debug label.
func (w *WritableAtom[T, A]) WithLabel(label string) *WritableAtom[T, A] {
	return &WritableAtom[T, A]{node: w.clone(func(c *node) { c.label = label })}
}

// WithEquals returns a copy of the atom using fn to compare recomputed values.
func (w *WritableAtom[T, A]) WithEquals(fn func(a, b T) bool) *WritableAtom[T, A] {
	return &WritableAtom[T, A]{node: w.clone(func(c *node) { c.equal = equalsOf(fn) })}
}

// WithOnMount returns a copy of the atom with a mount hook bound to its
// write function.
func (w *WritableAtom[T, A]) WithOnMount(fn func(setSelf func(A) error) func()) *WritableAtom[T, A] {
	return &WritableAtom[T, A]{node: w.clone(func(c *node) {
		c.onMount = func(setSelf func(any) error) func() {
			return fn(func(arg A) error { return setSelf(arg) })
		}
	})}
}

var (
	_ Writable[int, Update[int]] = (*Primitive[int])(nil)
	_ Readable[int]              = (*Atom[int])(nil)
	_ Writable[int, string]      = (*WritableAtom[int, string])(nil)
)
