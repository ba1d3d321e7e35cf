// Package family creates and caches atom definitions keyed by a parameter.
//
// Since atom identity is the definition itself, calling a constructor twice
// yields two unrelated atoms. A Family returns the same definition for the
// same key:
//
//	todo := family.New(func(id int) *atom.Primitive[Todo] {
//	    return atom.New(Todo{ID: id})
//	})
//
//	todo.Get(1) == todo.Get(1) // same atom
//
// Definitions are shared across stores, so a Family is safe for concurrent use.
package family

import (
	"sync"
	"time"

	"github.com/vango-dev/atom/pkg/atom"
)

// Family caches one atom definition per key.
type Family[K comparable, D atom.Definition] struct {
	create func(K) D

	mu           sync.Mutex
	entries      map[K]entry[D]
	keys         []K
	shouldRemove func(createdAt time.Time, key K) bool
	now          func() time.Time
}

type entry[D any] struct {
	def       D
	createdAt time.Time
}

// New creates a family building definitions with create.
func New[K comparable, D atom.Definition](create func(key K) D) *Family[K, D] {
	return &Family[K, D]{
		create:  create,
		entries: make(map[K]entry[D]),
		now:     time.Now,
	}
}

// Get returns the definition for key, creating it on first use or when the
// cached one matches the removal predicate.
func (f *Family[K, D]) Get(key K) D {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e, ok := f.entries[key]; ok {
		if f.shouldRemove == nil || !f.shouldRemove(e.createdAt, key) {
			return e.def
		}
		f.removeLocked(key)
	}

	def := f.create(key)
	f.entries[key] = entry[D]{def: def, createdAt: f.now()}
	f.keys = append(f.keys, key)
	return def
}

// Remove forgets the definition for key. Stores keep any state they hold
// for it until it unmounts.
func (f *Family[K, D]) Remove(key K) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(key)
}

func (f *Family[K, D]) removeLocked(key K) {
	if _, ok := f.entries[key]; !ok {
		return
	}
	delete(f.entries, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the cached keys in creation order.
func (f *Family[K, D]) Keys() []K {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]K(nil), f.keys...)
}

// SetShouldRemove installs a predicate deciding which cached definitions to
// drop. Matching entries are removed now and whenever Get finds one. A nil
// predicate disables removal.
func (f *Family[K, D]) SetShouldRemove(fn func(createdAt time.Time, key K) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.shouldRemove = fn
	if fn == nil {
		return
	}
	for _, k := range append([]K(nil), f.keys...) {
		if fn(f.entries[k].createdAt, k) {
			f.removeLocked(k)
		}
	}
}
