// Package loadable turns an async atom into a synchronous view of its state.
//
// Reading an async atom before it settles fails with atom.ErrPending. A
// loadable atom never does; it reports the state instead:
//
//	user := atom.Async(fetchUser)
//	view := loadable.Of[*User](user)
//
//	l, _ := view.Get(store)
//	switch l.State {
//	case loadable.Loading:
//	case loadable.HasError:
//	    log.Println(l.Err)
//	case loadable.HasData:
//	    render(l.Data)
//	}
package loadable

import (
	"errors"
	"sync"

	"github.com/vango-dev/atom/pkg/atom"
)

// State is the state of a loadable value.
type State int

const (
	Loading  State = iota // value is pending
	HasData               // value settled
	HasError              // read failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case HasData:
		return "hasData"
	case HasError:
		return "hasError"
	default:
		return "unknown"
	}
}

// Loadable is a snapshot of an atom's result.
type Loadable[T any] struct {
	State State
	Data  T
	Err   error
}

// cache maps source atom IDs to their loadable atom so that Of returns the
// same definition for the same source.
var cache sync.Map // map[uint64]any

// Of returns the loadable atom of src. The definition is cached for the life
// of the process; call Forget once src is no longer used.
func Of[T any](src atom.Readable[T]) *atom.Atom[Loadable[T]] {
	if v, ok := cache.Load(src.ID()); ok {
		return v.(*atom.Atom[Loadable[T]])
	}

	a := atom.Derived(func(get atom.Getter) (Loadable[T], error) {
		v, err := src.Get(get)
		switch {
		case errors.Is(err, atom.ErrPending):
			return Loadable[T]{State: Loading}, nil
		case err != nil:
			return Loadable[T]{State: HasError, Err: err}, nil
		}
		return Loadable[T]{State: HasData, Data: v}, nil
	}).WithLabel("loadable(" + src.String() + ")")

	actual, _ := cache.LoadOrStore(src.ID(), a)
	return actual.(*atom.Atom[Loadable[T]])
}

// Forget drops the cached loadable atom of src. A later Of builds a new
// definition.
func Forget(src atom.Definition) {
	cache.Delete(src.ID())
}
