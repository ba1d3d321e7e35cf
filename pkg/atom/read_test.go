package atom

import (
	"errors"
	"testing"
)

func mustGet[T any](t *testing.T, s *Store, a Readable[T]) T {
	t.Helper()
	v, err := a.Get(s)
	if err != nil {
		t.Fatalf("read %s: unexpected error: %v", a, err)
	}
	return v
}

func TestPrimitiveInitialValue(t *testing.T) {
	count := New(5)
	store := NewStore()

	if v := mustGet[int](t, store, count); v != 5 {
		t.Errorf("expected 5, got %d", v)
	}
	if !store.Has(count) {
		t.Error("expected a record after the first read")
	}
}

func TestInitialValuesOverride(t *testing.T) {
	count := New(5)
	store := NewStore(WithInitialValues(Init(count, 9)))
	other := NewStore()

	if v := mustGet[int](t, store, count); v != 9 {
		t.Errorf("expected 9, got %d", v)
	}
	if v := mustGet[int](t, other, count); v != 5 {
		t.Errorf("expected default 5 in another store, got %d", v)
	}
}

func TestDerivedRecomputesAfterWrite(t *testing.T) {
	count := New(1)
	doubled := Derived(func(get Getter) (int, error) {
		n, err := count.Get(get)
		return n * 2, err
	})
	store := NewStore()

	if v := mustGet[int](t, store, doubled); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if err := count.Set(store, 5); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, doubled); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
}

func TestDerivedReadIsCached(t *testing.T) {
	computations := 0
	count := New(3)
	doubled := Derived(func(get Getter) (int, error) {
		computations++
		n, err := count.Get(get)
		return n * 2, err
	})
	store := NewStore()

	first := mustGet[int](t, store, doubled)
	second := mustGet[int](t, store, doubled)

	if first != second {
		t.Errorf("expected identical reads, got %d and %d", first, second)
	}
	if computations != 1 {
		t.Errorf("expected 1 computation (cached), got %d", computations)
	}
}

func TestDiamondEvaluatesOnce(t *testing.T) {
	a := New(1)
	b := Derived(func(get Getter) (int, error) {
		n, err := a.Get(get)
		return n + 1, err
	})
	c := Derived(func(get Getter) (int, error) {
		n, err := a.Get(get)
		return n * 10, err
	})
	computations := 0
	d := Derived(func(get Getter) (int, error) {
		computations++
		x, err := b.Get(get)
		if err != nil {
			return 0, err
		}
		y, err := c.Get(get)
		return x + y, err
	})

	for _, mounted := range []bool{false, true} {
		computations = 0
		store := NewStore()
		if mounted {
			defer store.Subscribe(d, func() {})()
		}
		if v := mustGet[int](t, store, d); v != 12 {
			t.Fatalf("mounted=%v: expected 12, got %d", mounted, v)
		}
		computations = 0

		if err := a.Set(store, 2); err != nil {
			t.Fatal(err)
		}
		if v := mustGet[int](t, store, d); v != 23 {
			t.Errorf("mounted=%v: expected 23, got %d", mounted, v)
		}
		if computations != 1 {
			t.Errorf("mounted=%v: expected 1 computation of d, got %d", mounted, computations)
		}
	}
}

func TestDynamicDependencies(t *testing.T) {
	useA := New(true)
	a := New("a").WithLabel("a")
	b := New("b").WithLabel("b")
	pick := Derived(func(get Getter) (string, error) {
		ok, err := useA.Get(get)
		if err != nil {
			return "", err
		}
		if ok {
			return a.Get(get)
		}
		return b.Get(get)
	})
	store := NewStore()
	calls := 0
	unsubscribe := store.Subscribe(pick, func() { calls++ })
	defer unsubscribe()

	if deps := store.Dependencies(pick); len(deps) != 2 || deps[1] != Definition(a.node) {
		t.Fatalf("expected dependencies [useA a], got %v", deps)
	}

	if err := useA.Set(store, false); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[string](t, store, pick); v != "b" {
		t.Errorf("expected b, got %q", v)
	}
	if store.IsMounted(a) {
		t.Error("expected a to be unmounted after the branch switch")
	}
	if !store.IsMounted(b) {
		t.Error("expected b to be mounted after the branch switch")
	}
	if len(store.Dependents(a)) != 0 {
		t.Errorf("expected no dependents of a, got %v", store.Dependents(a))
	}

	calls = 0
	if err := a.Set(store, "x"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("expected no notification from a dropped dependency, got %d", calls)
	}
	if err := b.Set(store, "y"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestDependentsMirrorDependencies(t *testing.T) {
	a := New(1)
	b := Derived(func(get Getter) (int, error) { return a.Get(get) })
	c := Derived(func(get Getter) (int, error) {
		x, _ := a.Get(get)
		y, err := b.Get(get)
		return x + y, err
	})
	store := NewStore()
	mustGet[int](t, store, c)

	for _, info := range store.Snapshot() {
		for _, dep := range info.Dependencies {
			found := false
			for _, d := range store.Dependents(dep) {
				if d == info.Atom {
					found = true
				}
			}
			if !found {
				t.Errorf("%s depends on %s but is not among its dependents", info.Atom, dep)
			}
		}
	}
}

func TestCycleError(t *testing.T) {
	var x *Atom[int]
	x = Derived(func(get Getter) (int, error) {
		return x.Get(get)
	}).WithLabel("x")
	other := New(7)
	store := NewStore()

	_, err := x.Get(store)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) || len(ce.Path) != 2 || ce.Path[0].ID() != x.ID() {
		t.Errorf("expected path [x x], got %v", err)
	}
	if store.Has(x) {
		t.Error("expected no record for the cyclic atom")
	}
	if v := mustGet[int](t, store, other); v != 7 {
		t.Errorf("expected the rest of the store to work, got %d", v)
	}
}

func TestIndirectCycle(t *testing.T) {
	var x, y *Atom[int]
	x = Derived(func(get Getter) (int, error) { return y.Get(get) })
	y = Derived(func(get Getter) (int, error) { return x.Get(get) })
	store := NewStore()

	if _, err := y.Get(store); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if store.Has(x) || store.Has(y) {
		t.Error("expected no records after a cycle")
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	errBoom := errors.New("boom")
	fail := true
	computations := 0
	d := Derived(func(get Getter) (int, error) {
		computations++
		if fail {
			return 0, errBoom
		}
		return 1, nil
	})
	store := NewStore()

	if _, err := d.Get(store); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if _, err := d.Get(store); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if computations != 2 {
		t.Errorf("expected 2 computations (errors re-evaluate), got %d", computations)
	}

	fail = false
	if v := mustGet[int](t, store, d); v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	mustGet[int](t, store, d)
	if computations != 3 {
		t.Errorf("expected 3 computations, got %d", computations)
	}
}

func TestErrorPropagatesToDependents(t *testing.T) {
	errBoom := errors.New("boom")
	src := Derived(func(get Getter) (int, error) { return 0, errBoom })
	dep := Derived(func(get Getter) (int, error) {
		n, err := src.Get(get)
		return n + 1, err
	})
	store := NewStore()

	if _, err := dep.Get(store); !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom from dependent, got %v", err)
	}
}

func TestMountedErrorIsReused(t *testing.T) {
	errOdd := errors.New("odd")
	n := New(0)
	computations := 0
	even := Derived(func(get Getter) (int, error) {
		computations++
		v, err := n.Get(get)
		if err != nil {
			return 0, err
		}
		if v%2 != 0 {
			return 0, errOdd
		}
		return v, nil
	})
	store := NewStore()
	calls := 0
	defer store.Subscribe(even, func() { calls++ })()

	n.Set(store, 1)
	if calls != 1 || computations != 2 {
		t.Fatalf("expected 1 notification and 2 computations, got %d and %d", calls, computations)
	}
	if _, err := even.Get(store); !errors.Is(err, errOdd) {
		t.Fatalf("expected errOdd, got %v", err)
	}
	if computations != 2 {
		t.Errorf("expected the mounted error to be reused, got %d computations", computations)
	}

	n.Set(store, 3)
	if calls != 1 {
		t.Errorf("expected the same error not to notify again, got %d", calls)
	}
	if computations != 3 {
		t.Errorf("expected 3 computations, got %d", computations)
	}

	n.Set(store, 4)
	if calls != 2 {
		t.Errorf("expected recovery to notify, got %d", calls)
	}
	if v := mustGet[int](t, store, even); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
}

func TestSubscribeToFailingAtom(t *testing.T) {
	errBoom := errors.New("boom")
	computations := 0
	fail := Derived(func(get Getter) (int, error) {
		computations++
		return 0, errBoom
	})
	store := NewStore()
	calls := 0

	unsubscribe := store.Subscribe(fail, func() { calls++ })
	if _, err := fail.Get(store); !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
	if computations != 1 || calls != 0 {
		t.Errorf("expected 1 computation and no notification, got %d and %d", computations, calls)
	}
	if !store.IsMounted(fail) {
		t.Error("expected the failing atom to stay mounted")
	}

	unsubscribe()
	if _, err := fail.Get(store); !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
	if computations != 2 {
		t.Errorf("expected an unmounted read to re-evaluate, got %d computations", computations)
	}
}

func TestEqualRecomputeKeepsDependentsFresh(t *testing.T) {
	n := New(2)
	parity := Derived(func(get Getter) (int, error) {
		v, err := n.Get(get)
		return v % 2, err
	})
	computations := 0
	label := Derived(func(get Getter) (int, error) {
		computations++
		p, err := parity.Get(get)
		return p * 10, err
	})
	store := NewStore()

	mustGet[int](t, store, label)
	if err := n.Set(store, 4); err != nil {
		t.Fatal(err)
	}
	mustGet[int](t, store, label)

	if computations != 1 {
		t.Errorf("expected 1 computation (parity unchanged), got %d", computations)
	}
}

func TestWithEqualsOnDerived(t *testing.T) {
	src := New([]int{1, 2, 3})
	first := Derived(func(get Getter) ([]int, error) {
		xs, err := src.Get(get)
		if err != nil || len(xs) == 0 {
			return nil, err
		}
		return xs[:1], nil
	}).WithEquals(func(a, b []int) bool {
		return len(a) == len(b) && (len(a) == 0 || a[0] == b[0])
	})
	store := NewStore()
	calls := 0
	defer store.Subscribe(first, func() { calls++ })()

	if err := src.Set(store, []int{1, 9}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("expected no notification for an equal selection, got %d", calls)
	}
	if err := src.Set(store, []int{2}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestReadAny(t *testing.T) {
	name := New("vango").WithLabel("name")
	store := NewStore()

	v, err := store.ReadAny(name)
	if err != nil {
		t.Fatal(err)
	}
	if v != "vango" {
		t.Errorf("expected vango, got %v", v)
	}
	if name.String() != "name" {
		t.Errorf("expected label name, got %s", name)
	}
}

func TestLabelIsANewDefinition(t *testing.T) {
	a := New(1)
	b := a.WithLabel("b")
	if a.ID() == b.ID() {
		t.Error("expected WithLabel to return a distinct atom")
	}
	store := NewStore()
	if err := a.Set(store, 2); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, b); v != 1 {
		t.Errorf("expected b unaffected by writes to a, got %d", v)
	}
}
