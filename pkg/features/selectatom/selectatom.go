// Package selectatom derives a slice of another atom's value.
//
// A selection only changes when the selected value changes under the given
// equality, so subscribers of a narrow selection are not notified for writes
// to unrelated parts of the source:
//
//	name := selectatom.New(user, func(u User) string { return u.Name }, nil)
//	tags := selectatom.New(user, func(u User) []string { return u.Tags }, slices.Equal[[]string])
package selectatom

import "github.com/vango-dev/atom/pkg/atom"

// New returns a read-only atom holding selector applied to the value of
// src. When eq is nil the store equality policy applies.
func New[T, S any](src atom.Readable[T], selector func(T) S, eq func(a, b S) bool) *atom.Atom[S] {
	a := atom.Derived(func(get atom.Getter) (S, error) {
		v, err := src.Get(get)
		if err != nil {
			var zero S
			return zero, err
		}
		return selector(v), nil
	})
	if eq != nil {
		a = a.WithEquals(eq)
	}
	return a
}
