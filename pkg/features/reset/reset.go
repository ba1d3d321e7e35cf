// Package reset provides atoms that can be restored to their initial value.
//
//	filter := reset.New("all")
//	filter.Set(store, "done")
//	filter.Write(store, reset.Restore[string]()) // back to "all"
package reset

import "github.com/vango-dev/atom/pkg/atom"

// Arg is the write argument of a resettable atom: a replacement value, a
// function of the previous value, or a request to restore the initial value.
type Arg[T any] struct {
	update  atom.Update[T]
	restore bool
}

// To returns an Arg replacing the value with v.
func To[T any](v T) Arg[T] {
	return Arg[T]{update: atom.To(v)}
}

// With returns an Arg applying fn to the previous value.
func With[T any](fn func(prev T) T) Arg[T] {
	return Arg[T]{update: atom.With(fn)}
}

// Restore returns an Arg restoring the initial value.
func Restore[T any]() Arg[T] {
	return Arg[T]{restore: true}
}

// Atom is a writable atom that remembers the value it was created with.
type Atom[T any] struct {
	*atom.WritableAtom[T, Arg[T]]
	initial T
}

// New creates a resettable atom holding initial.
func New[T any](initial T) *Atom[T] {
	value := atom.New(initial)
	return &Atom[T]{
		WritableAtom: atom.DerivedWritable(func(get atom.Getter) (T, error) {
			return value.Get(get)
		}, func(get atom.Getter, set atom.Setter, arg Arg[T]) error {
			if arg.restore {
				return value.Set(set, initial)
			}
			return value.Write(set, arg.update)
		}),
		initial: initial,
	}
}

// Initial returns the value the atom was created with.
func (a *Atom[T]) Initial() T { return a.initial }

// Set replaces the value with v.
func (a *Atom[T]) Set(set atom.Setter, v T) error {
	return a.Write(set, To(v))
}

// Reset restores the initial value.
func (a *Atom[T]) Reset(set atom.Setter) error {
	return a.Write(set, Restore[T]())
}

func (a *Atom[T]) reset(set atom.Setter) error {
	return a.Reset(set)
}

// Reset restores a plain primitive to the initial value of its definition.
func Reset[T any](set atom.Setter, p *atom.Primitive[T]) error {
	return p.Set(set, p.Initial())
}

// Resetter returns a write-only atom that resets every given atom in one
// write.
func Resetter(atoms ...Target) *atom.WritableAtom[struct{}, struct{}] {
	return atom.WriteOnly(func(get atom.Getter, set atom.Setter, _ struct{}) error {
		for _, t := range atoms {
			if err := t.reset(set); err != nil {
				return err
			}
		}
		return nil
	})
}

// Target is an atom that Resetter can restore. *Atom is a Target; wrap plain
// primitives with Of.
type Target interface {
	reset(set atom.Setter) error
}

type target[T any] struct {
	p *atom.Primitive[T]
}

func (t target[T]) reset(set atom.Setter) error {
	return Reset(set, t.p)
}

// Of wraps p as a Resetter target.
func Of[T any](p *atom.Primitive[T]) Target {
	return target[T]{p: p}
}
