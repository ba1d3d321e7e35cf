package atom

import (
	"errors"
	"strings"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

// ErrCycle matches any *CycleError. A derived atom read itself, directly or
// through other atoms, during one evaluation.
var ErrCycle = errors.New("atom: circular dependency")

// ErrNotWritable matches any *NotWritableError.
var ErrNotWritable = errors.New("atom: not writable")

// ErrPending is returned when reading an async atom whose value has not
// settled yet. It is not a failure; use ReadFuture to wait for the value.
var ErrPending = errors.New("atom: value pending")

// ErrEvicted rejects the future of a pending atom whose record was evicted
// before the value settled.
var ErrEvicted = errors.New("atom: evicted while pending")

// ErrLoopClosed is returned by Loop.Do after the loop stops.
var ErrLoopClosed = errors.New("atom: loop closed")

var errNilFuture = errors.New("atom: async read returned a nil future")

var errNilWriteFuture = errors.New("atom: async write returned a nil future")

// =============================================================================
// Typed Errors
// =============================================================================

// CycleError reports the evaluation path that led back to an atom already
// under evaluation. The last element of Path is the atom read twice.
type CycleError struct {
	Path []Definition
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, d := range e.Path {
		names[i] = d.String()
	}
	return "atom: circular dependency: " + strings.Join(names, " -> ")
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// NotWritableError is returned when writing an atom without a write function.
type NotWritableError struct {
	Atom Definition
}

// Error implements the error interface.
func (e *NotWritableError) Error() string {
	return "atom: " + e.Atom.String() + " is not writable"
}

// Is reports whether target is ErrNotWritable.
func (e *NotWritableError) Is(target error) bool {
	return target == ErrNotWritable
}

// PendingError is returned by a read of an atom whose value is an unsettled
// future. It matches ErrPending.
type PendingError struct {
	Atom   Definition
	future *promise
}

// Error implements the error interface.
func (e *PendingError) Error() string {
	return "atom: " + e.Atom.String() + " is pending"
}

// Is reports whether target is ErrPending.
func (e *PendingError) Is(target error) bool {
	return target == ErrPending
}

// Done returns a channel closed when the pending value settles.
func (e *PendingError) Done() <-chan struct{} {
	return e.future.done
}
