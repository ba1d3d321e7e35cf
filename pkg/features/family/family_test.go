package family

import (
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/atom/pkg/atom"
)

func TestFamilyCachesPerKey(t *testing.T) {
	created := 0
	todo := New(func(id int) *atom.Primitive[string] {
		created++
		return atom.New("todo")
	})

	a := todo.Get(1)
	b := todo.Get(1)
	c := todo.Get(2)

	if a != b {
		t.Error("expected the same definition for the same key")
	}
	if a == c {
		t.Error("expected distinct definitions for distinct keys")
	}
	if created != 2 {
		t.Errorf("expected 2 creations, got %d", created)
	}
}

func TestFamilyAtomsAreIndependent(t *testing.T) {
	counter := New(func(name string) *atom.Primitive[int] { return atom.New(0) })
	store := atom.NewStore()

	if err := counter.Get("a").Set(store, 5); err != nil {
		t.Fatal(err)
	}
	b, _ := counter.Get("b").Get(store)
	a, _ := counter.Get("a").Get(store)
	if a != 5 || b != 0 {
		t.Errorf("expected a=5 b=0, got a=%d b=%d", a, b)
	}
}

func TestFamilyRemove(t *testing.T) {
	f := New(func(id int) *atom.Primitive[int] { return atom.New(id) })
	first := f.Get(1)
	f.Get(2)

	f.Remove(1)
	f.Remove(99)

	if keys := f.Keys(); len(keys) != 1 || keys[0] != 2 {
		t.Errorf("expected keys [2], got %v", keys)
	}
	if f.Get(1) == first {
		t.Error("expected a new definition after Remove")
	}
}

func TestFamilyShouldRemove(t *testing.T) {
	f := New(func(id int) *atom.Primitive[int] { return atom.New(id) })
	clock := time.Unix(0, 0)
	f.now = func() time.Time { return clock }

	old := f.Get(1)
	clock = clock.Add(time.Minute)
	f.Get(2)

	cutoff := time.Unix(30, 0)
	f.SetShouldRemove(func(createdAt time.Time, key int) bool {
		return createdAt.Before(cutoff)
	})

	if keys := f.Keys(); len(keys) != 1 || keys[0] != 2 {
		t.Errorf("expected keys [2], got %v", keys)
	}
	if f.Get(1) == old {
		t.Error("expected key 1 to be recreated")
	}

	f.SetShouldRemove(nil)
	if len(f.Keys()) != 2 {
		t.Errorf("expected 2 keys, got %v", f.Keys())
	}
}

func TestFamilyConcurrentGet(t *testing.T) {
	f := New(func(id int) *atom.Primitive[int] { return atom.New(id) })
	results := make([]*atom.Primitive[int], 20)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.Get(7)
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r != results[0] {
			t.Fatal("expected every goroutine to get the same definition")
		}
	}
}
