package atom

import (
	"log/slog"
	"sort"
)

// Getter reads atoms. Inside a read function it records dependencies; the
// Store itself is an untracked Getter.
type Getter interface {
	get(n *node) (any, error)
}

// Setter writes atoms. The Store is the root Setter; write functions receive
// one that cascades into the same batch.
type Setter interface {
	set(n *node, arg any) error
}

// Get reads a through g.
func Get[T any](g Getter, a Readable[T]) (T, error) {
	return a.Get(g)
}

// Set writes arg to a through s.
func Set[T, A any](s Setter, a Writable[T, A], arg A) error {
	return a.Write(s, arg)
}

// WriteFuture writes arg to a and returns the completion of the write. The
// future is already settled unless a was built by WriteAsync.
func WriteFuture[T, A any](s *Store, a Writable[T, A], arg A) *Future[struct{}] {
	n := a.atomNode()
	if n.startWrite == nil {
		if err := a.Write(s, arg); err != nil {
			return Rejected[struct{}](err)
		}
		return Resolved(struct{}{})
	}
	s.begin()
	defer s.end()
	return &Future[struct{}]{p: s.writeAsync(n, arg)}
}

// =============================================================================
// Configuration
// =============================================================================

type config struct {
	logger          *slog.Logger
	observer        Observer
	equal           func(a, b any) bool
	dispatch        func(fn func())
	evictPrimitives bool
	initial         map[*node]any
	queueSize       int
}

// Option configures a Store or a Loop.
type Option func(*config)

// InitialValue pairs a primitive atom with the value it starts with in one
// store. Build it with Init.
type InitialValue struct {
	n *node
	v any
}

// Init returns an initial value override for p.
func Init[T any](p *Primitive[T], v T) InitialValue {
	return InitialValue{n: p.node, v: v}
}

// WithInitialValues seeds primitive atoms with values other than their
// defaults.
func WithInitialValues(values ...InitialValue) Option {
	return func(c *config) {
		for _, iv := range values {
			c.initial[iv.n] = iv.v
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver receives engine events.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithEquality replaces the store-wide equality policy used to skip no-op
// writes and unchanged recomputations. Per-atom WithEquals takes precedence.
func WithEquality(fn func(a, b any) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.equal = fn
		}
	}
}

// WithDispatcher sets where async settlements re-enter the store. The
// default runs them on the settling goroutine, which is only safe when
// futures settle on the goroutine that owns the store.
func WithDispatcher(dispatch func(fn func())) Option {
	return func(c *config) { c.dispatch = dispatch }
}

// WithPrimitiveEviction makes unmounting evict primitive records as well,
// so their values revert to the initial value.
func WithPrimitiveEviction() Option {
	return func(c *config) { c.evictPrimitives = true }
}

// WithQueueSize sets the request queue capacity of a Loop.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		logger:    slog.Default().With("component", "atom.store"),
		equal:     defaultEquals,
		dispatch:  func(fn func()) { fn() },
		initial:   make(map[*node]any),
		queueSize: 256,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// Store
// =============================================================================

// Store holds the state of every atom read or written through it.
//
// A Store is not safe for concurrent use. All calls, including those made
// by future settlements, must happen on one goroutine; use Loop to serve
// concurrent callers.
type Store struct {
	cfg    *config
	logger *slog.Logger

	states map[*node]*atomState
	mounts map[*node]*mounted

	// stack holds atoms under evaluation, innermost last.
	stack   []*node
	onStack map[*node]bool

	// dirty marks mounted atoms whose dependencies changed since their last
	// evaluation.
	dirty map[*node]bool

	// changed collects atoms whose version advanced since the last flush.
	changed    []*node
	changedSet map[*node]struct{}

	mountQueue   []func()
	cleanupQueue []func()
	deferred     []func()

	depth    int
	flushing bool
	clock    uint64
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	cfg := newConfig(opts)
	return &Store{
		cfg:        cfg,
		logger:     cfg.logger,
		states:     make(map[*node]*atomState),
		mounts:     make(map[*node]*mounted),
		onStack:    make(map[*node]bool),
		dirty:      make(map[*node]bool),
		changedSet: make(map[*node]struct{}),
	}
}

// get is the untracked root read.
func (s *Store) get(n *node) (any, error) {
	s.begin()
	defer s.end()

	st, err := s.readAtom(n)
	if err != nil {
		return nil, err
	}
	return valueOf(n, st)
}

// set is the root write.
func (s *Store) set(n *node, arg any) error {
	s.begin()
	defer s.end()
	return s.write(nil, n, arg)
}

// ReadAny reads d without knowing its value type.
func (s *Store) ReadAny(d Definition) (any, error) {
	return s.get(d.atomNode())
}

// WriteAny writes arg to d without knowing its argument type. For primitive
// atoms arg is the new value.
func (s *Store) WriteAny(d Definition, arg any) error {
	return s.set(d.atomNode(), arg)
}

// Batch runs fn and delays recomputation and notification until it returns.
// Batches nest; only the outermost one flushes.
func (s *Store) Batch(fn func()) {
	s.begin()
	defer s.end()
	fn()
}

func (s *Store) begin() {
	s.depth++
}

func (s *Store) end() {
	s.depth--
	if s.depth == 0 {
		s.flush()
	}
}

func (s *Store) busy() bool {
	return s.depth > 0 || s.flushing
}

func (s *Store) tick() uint64 {
	s.clock++
	return s.clock
}

func (s *Store) initialValue(n *node) any {
	if v, ok := s.cfg.initial[n]; ok {
		return v
	}
	return n.init
}

func (s *Store) equal(n *node, a, b any) bool {
	if n.equal != nil {
		return n.equal(a, b)
	}
	return s.cfg.equal(a, b)
}

func (s *Store) emit(e Event) {
	if s.cfg.observer != nil {
		s.cfg.observer.OnEvent(e)
	}
}

// schedule runs fn through the dispatcher. When it lands while the store is
// busy it waits for the current flush.
func (s *Store) schedule(fn func()) {
	s.cfg.dispatch(func() {
		if s.busy() {
			s.deferred = append(s.deferred, fn)
			return
		}
		fn()
	})
}

// =============================================================================
// Introspection
// =============================================================================

// Has reports whether the store holds a record for d.
func (s *Store) Has(d Definition) bool {
	_, ok := s.states[d.atomNode()]
	return ok
}

// IsMounted reports whether d is observed by a subscription.
func (s *Store) IsMounted(d Definition) bool {
	_, ok := s.mounts[d.atomNode()]
	return ok
}

// Listeners returns the number of subscriptions directly on d.
func (s *Store) Listeners(d Definition) int {
	if m := s.mounts[d.atomNode()]; m != nil {
		return len(m.listeners)
	}
	return 0
}

// Dependencies returns the atoms d read during its last evaluation.
func (s *Store) Dependencies(d Definition) []Definition {
	st := s.states[d.atomNode()]
	if st == nil {
		return nil
	}
	out := make([]Definition, 0, len(st.deps))
	for n := range st.deps {
		out = append(out, n)
	}
	return sortDefs(out)
}

// Dependents returns the atoms whose last evaluation read d.
func (s *Store) Dependents(d Definition) []Definition {
	st := s.states[d.atomNode()]
	if st == nil {
		return nil
	}
	out := make([]Definition, 0, len(st.dependents))
	for n := range st.dependents {
		out = append(out, n)
	}
	return sortDefs(out)
}

// MountedAtoms returns every mounted atom.
func (s *Store) MountedAtoms() []Definition {
	out := make([]Definition, 0, len(s.mounts))
	for n := range s.mounts {
		out = append(out, n)
	}
	return sortDefs(out)
}

// AtomInfo describes one record in a Snapshot.
type AtomInfo struct {
	Atom         Definition
	Value        any
	Err          error
	Pending      bool
	Version      uint64
	Mounted      bool
	Listeners    int
	Dependencies []Definition
	Dependents   []Definition
}

// Snapshot describes every record in the store, ordered by atom ID.
// It does not evaluate anything.
func (s *Store) Snapshot() []AtomInfo {
	infos := make([]AtomInfo, 0, len(s.states))
	for n, st := range s.states {
		info := AtomInfo{
			Atom:         n,
			Err:          st.err,
			Pending:      st.pending(),
			Version:      st.version,
			Dependencies: s.Dependencies(n),
			Dependents:   s.Dependents(n),
		}
		if st.hasValue {
			info.Value = st.value
		}
		if m := s.mounts[n]; m != nil {
			info.Mounted = true
			info.Listeners = len(m.listeners)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Atom.ID() < infos[j].Atom.ID()
	})
	return infos
}

func sortDefs(defs []Definition) []Definition {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID() < defs[j].ID() })
	return defs
}

var (
	_ Getter = (*Store)(nil)
	_ Setter = (*Store)(nil)
)
