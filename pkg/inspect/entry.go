package inspect

import (
	"encoding/json"

	"github.com/vango-dev/atom/pkg/atom"
)

// Entry exposes one atom under a name.
type Entry struct {
	Name string
	Atom atom.Definition

	// Decode converts a JSON request body into the write argument of the
	// atom. Nil marks the entry read-only.
	Decode func(raw json.RawMessage) (any, error)
}

// Writable reports whether the entry accepts PUT requests.
func (e Entry) Writable() bool {
	return e.Decode != nil
}

// Readable exposes a as a read-only entry.
func Readable[T any](name string, a atom.Readable[T]) Entry {
	return Entry{Name: name, Atom: a}
}

// Primitive exposes p as a writable entry whose body is the new value.
func Primitive[T any](name string, p *atom.Primitive[T]) Entry {
	return Entry{Name: name, Atom: p, Decode: decodeAs[T]}
}

// Writable exposes a writable atom whose body is decoded as its write
// argument.
func Writable[T, A any](name string, a atom.Writable[T, A]) Entry {
	return Entry{Name: name, Atom: a, Decode: decodeAs[A]}
}

// Dynamic exposes a type-erased atom, such as one built from a scenario
// file. Bodies decode into plain JSON values.
func Dynamic(name string, d atom.Definition, writable bool) Entry {
	e := Entry{Name: name, Atom: d}
	if writable {
		e.Decode = decodeAs[any]
	}
	return e
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
