package atom

import (
	"errors"
	"strings"
	"testing"
)

func TestFunctionalUpdate(t *testing.T) {
	counter := New(1)
	store := NewStore()

	if err := counter.Update(store, func(prev int) int { return prev + 1 }); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, counter); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
}

func TestWriteUpdates(t *testing.T) {
	counter := New(10)
	store := NewStore()

	if err := counter.Write(store, To(3)); err != nil {
		t.Fatal(err)
	}
	if err := Set[int, Update[int]](store, counter, With(func(n int) int { return n * 3 })); err != nil {
		t.Fatal(err)
	}
	if v, _ := Get[int](store, counter); v != 9 {
		t.Errorf("expected 9, got %d", v)
	}
}

func TestSubscribeNotifiesOnce(t *testing.T) {
	a := New(1)
	b := Derived(func(get Getter) (int, error) {
		n, err := a.Get(get)
		return n * 2, err
	})
	store := NewStore()

	calls := 0
	unsubscribe := store.Subscribe(b, func() { calls++ })
	defer unsubscribe()

	if calls != 0 {
		t.Errorf("expected no call on subscribe, got %d", calls)
	}
	if err := a.Set(store, 5); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
	if v := mustGet[int](t, store, b); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
}

func TestNoOpWriteDoesNotNotify(t *testing.T) {
	a := New("same")
	store := NewStore()
	calls := 0
	defer store.Subscribe(a, func() { calls++ })()

	if err := a.Set(store, "same"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("expected no notification for an equal write, got %d", calls)
	}
}

func TestStoreEqualityPolicy(t *testing.T) {
	a := New("Hello")
	store := NewStore(WithEquality(func(x, y any) bool {
		return strings.EqualFold(x.(string), y.(string))
	}))
	calls := 0
	defer store.Subscribe(a, func() { calls++ })()

	if err := a.Set(store, "HELLO"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("expected case-insensitive no-op, got %d notifications", calls)
	}
	if v := mustGet[string](t, store, a); v != "Hello" {
		t.Errorf("expected the original value kept, got %q", v)
	}
}

func TestWriteToReadOnlyAtom(t *testing.T) {
	d := Derived(func(get Getter) (int, error) { return 1, nil })
	store := NewStore()

	err := store.WriteAny(d, 5)
	if !errors.Is(err, ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
	var nw *NotWritableError
	if !errors.As(err, &nw) || nw.Atom.ID() != d.ID() {
		t.Errorf("expected NotWritableError for d, got %v", err)
	}
	if store.Has(d) {
		t.Error("expected no state change on a failed write")
	}
}

func TestDerivedWritableCascades(t *testing.T) {
	first := New("John")
	last := New("Doe")
	computations := 0
	full := DerivedWritable(
		func(get Getter) (string, error) {
			computations++
			f, _ := first.Get(get)
			l, err := last.Get(get)
			return f + " " + l, err
		},
		func(get Getter, set Setter, name string) error {
			parts := strings.SplitN(name, " ", 2)
			if err := first.Set(set, parts[0]); err != nil {
				return err
			}
			return last.Set(set, parts[1])
		},
	)
	store := NewStore()
	calls := 0
	defer store.Subscribe(full, func() { calls++ })()
	computations = 0

	if err := full.Write(store, "Jane Roe"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification after the cascade, got %d", calls)
	}
	if computations != 1 {
		t.Errorf("expected 1 recomputation, got %d", computations)
	}
	if v := mustGet[string](t, store, full); v != "Jane Roe" {
		t.Errorf("expected Jane Roe, got %q", v)
	}
}

func TestWriteGetIsUntracked(t *testing.T) {
	src := New(1)
	dst := New(0)
	copyOver := WriteOnly(func(get Getter, set Setter, _ struct{}) error {
		n, err := src.Get(get)
		if err != nil {
			return err
		}
		return dst.Set(set, n)
	})
	store := NewStore()

	if err := copyOver.Write(store, struct{}{}); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, dst); v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	for _, d := range store.Dependents(src) {
		if d.ID() == copyOver.ID() {
			t.Error("expected reads inside a write not to be tracked")
		}
	}
}

func TestWriteErrorPropagates(t *testing.T) {
	errInvalid := errors.New("invalid")
	w := WriteOnly(func(get Getter, set Setter, n int) error {
		if n < 0 {
			return errInvalid
		}
		return nil
	})
	store := NewStore()

	if err := w.Write(store, -1); !errors.Is(err, errInvalid) {
		t.Errorf("expected errInvalid, got %v", err)
	}
}

func TestSelfWriteRequiresPrimitive(t *testing.T) {
	var w *WritableAtom[int, int]
	w = DerivedWritable(
		func(get Getter) (int, error) { return 0, nil },
		func(get Getter, set Setter, n int) error { return w.Write(set, n) },
	)
	store := NewStore()

	if err := w.Write(store, 1); !errors.Is(err, ErrNotWritable) {
		t.Errorf("expected ErrNotWritable for a derived self-write, got %v", err)
	}
}

func TestPrimitiveCustomWrite(t *testing.T) {
	var clamped *Primitive[int]
	clamped = New(0).WithWrite(func(get Getter, set Setter, u Update[int]) error {
		prev, err := clamped.Get(get)
		if err != nil {
			return err
		}
		next := u.Apply(prev)
		if next > 10 {
			next = 10
		}
		return clamped.Set(set, next)
	})
	store := NewStore()

	if err := clamped.Set(store, 50); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, clamped); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
	if err := store.WriteAny(clamped, 4); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, clamped); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
}

func TestBatchNotifiesOnce(t *testing.T) {
	a := New(0)
	b := New(0)
	computations := 0
	sum := Derived(func(get Getter) (int, error) {
		computations++
		x, _ := a.Get(get)
		y, err := b.Get(get)
		return x + y, err
	})
	store := NewStore()
	calls := 0
	defer store.Subscribe(sum, func() { calls++ })()
	computations = 0

	store.Batch(func() {
		a.Set(store, 1)
		b.Set(store, 2)
		a.Set(store, 3)
	})

	if calls != 1 {
		t.Errorf("expected 1 notification (batched), got %d", calls)
	}
	if computations != 1 {
		t.Errorf("expected 1 recomputation, got %d", computations)
	}
	if v := mustGet[int](t, store, sum); v != 5 {
		t.Errorf("expected 5, got %d", v)
	}
}

func TestListenerWritesAreFlushed(t *testing.T) {
	a := New(0)
	echo := New(0)
	store := NewStore()

	defer store.Subscribe(a, func() {
		n, _ := a.Get(store)
		echo.Set(store, n*10)
	})()
	echoCalls := 0
	defer store.Subscribe(echo, func() { echoCalls++ })()

	if err := a.Set(store, 4); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, echo); v != 40 {
		t.Errorf("expected 40, got %d", v)
	}
	if echoCalls != 1 {
		t.Errorf("expected 1 notification on echo, got %d", echoCalls)
	}
}

func TestWriteAsyncCommitsOnSettle(t *testing.T) {
	count := New(0)
	f, resolve, _ := NewFuture[int]()
	save := WriteAsync(func(get Getter, n int) *Future[int] {
		return f
	}, func(get Getter, set Setter, n int) error {
		return count.Set(set, n)
	})
	store := NewStore()
	calls := 0
	defer store.Subscribe(count, func() { calls++ })()

	done := WriteFuture(store, save, 5)
	if done.Settled() {
		t.Fatal("expected the write to be pending")
	}
	if v := mustGet[int](t, store, count); v != 0 {
		t.Errorf("expected no commit before settlement, got %d", v)
	}

	resolve(5)

	if _, err := done.Result(); err != nil {
		t.Fatalf("expected the write to complete, got %v", err)
	}
	if v := mustGet[int](t, store, count); v != 5 {
		t.Errorf("expected 5, got %d", v)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestWriteAsyncRejected(t *testing.T) {
	errSave := errors.New("save failed")
	commits := 0
	f, _, reject := NewFuture[int]()
	save := WriteAsync(func(get Getter, n int) *Future[int] {
		return f
	}, func(get Getter, set Setter, n int) error {
		commits++
		return nil
	})
	store := NewStore()

	done := WriteFuture(store, save, 1)
	reject(errSave)

	if _, err := done.Result(); !errors.Is(err, errSave) {
		t.Errorf("expected errSave, got %v", err)
	}
	if commits != 0 {
		t.Errorf("expected a rejected start to skip commit, got %d commits", commits)
	}
}

func TestWriteAsyncSettledStart(t *testing.T) {
	errCommit := errors.New("commit failed")
	count := New(0)
	save := WriteAsync(func(get Getter, n int) *Future[int] {
		return Resolved(n * 10)
	}, func(get Getter, set Setter, n int) error {
		if n > 100 {
			return errCommit
		}
		return count.Set(set, n)
	})
	store := NewStore()

	if err := save.Write(store, 3); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, count); v != 30 {
		t.Errorf("expected the commit to run before Write returns, got %d", v)
	}

	if _, err := WriteFuture(store, save, 50).Result(); !errors.Is(err, errCommit) {
		t.Errorf("expected errCommit, got %v", err)
	}

	nilStart := WriteAsync(func(get Getter, n int) *Future[int] { return nil },
		func(get Getter, set Setter, n int) error { return nil })
	if err := nilStart.Write(store, 1); !errors.Is(err, errNilWriteFuture) {
		t.Errorf("expected errNilWriteFuture, got %v", err)
	}
}

func TestWriteFutureSyncWrite(t *testing.T) {
	count := New(1)
	store := NewStore()

	if _, err := WriteFuture(store, count, To(4)).Result(); err != nil {
		t.Fatal(err)
	}
	if v := mustGet[int](t, store, count); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
}
