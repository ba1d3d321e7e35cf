package loadable

import (
	"errors"
	"testing"

	"github.com/vango-dev/atom/pkg/atom"
)

func TestLoadableStates(t *testing.T) {
	f, resolve, _ := atom.NewFuture[string]()
	src := atom.Async(func(get atom.Getter) *atom.Future[string] { return f })
	view := Of[string](src)
	store := atom.NewStore()

	calls := 0
	defer store.Subscribe(view, func() { calls++ })()

	l, err := view.Get(store)
	if err != nil {
		t.Fatal(err)
	}
	if l.State != Loading {
		t.Errorf("expected loading, got %s", l.State)
	}

	resolve("ready")

	l, _ = view.Get(store)
	if l.State != HasData || l.Data != "ready" {
		t.Errorf("expected hasData ready, got %s %q", l.State, l.Data)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestLoadableError(t *testing.T) {
	errDown := errors.New("service down")
	src := atom.Derived(func(get atom.Getter) (int, error) { return 0, errDown })
	store := atom.NewStore()

	l, err := Of[int](src).Get(store)
	if err != nil {
		t.Fatalf("expected no error from a loadable read, got %v", err)
	}
	if l.State != HasError || !errors.Is(l.Err, errDown) {
		t.Errorf("expected hasError with errDown, got %s %v", l.State, l.Err)
	}
}

func TestLoadableUnmountedRead(t *testing.T) {
	f, resolve, _ := atom.NewFuture[int]()
	src := atom.Async(func(get atom.Getter) *atom.Future[int] { return f })
	store := atom.NewStore()

	if l, _ := Of[int](src).Get(store); l.State != Loading {
		t.Fatalf("expected loading, got %s", l.State)
	}
	resolve(3)
	if l, _ := Of[int](src).Get(store); l.State != HasData || l.Data != 3 {
		t.Errorf("expected hasData 3, got %s %d", l.State, l.Data)
	}
}

func TestOfIsCached(t *testing.T) {
	src := atom.New(1)
	if Of[int](src) != Of[int](src) {
		t.Error("expected the same loadable atom for the same source")
	}
}

func TestForget(t *testing.T) {
	src := atom.New(1)
	first := Of[int](src)
	Forget(src)

	second := Of[int](src)
	if first == second {
		t.Error("expected a new loadable atom after Forget")
	}
	if Of[int](src) != second {
		t.Error("expected the new definition to be cached")
	}
	Forget(src)
}
