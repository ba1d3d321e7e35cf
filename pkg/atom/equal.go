package atom

import "reflect"

// defaultEquals is the store equality policy when none is configured.
//
// Comparable values use ==. Pointers, maps, slices and channels compare by
// identity, so writing a freshly allocated slice always counts as a change
// while writing the same slice header back is a no-op. Functions are equal
// only when both are nil. Other non-comparable values, such as structs that
// hold slices, fall back to reflect.DeepEqual.
func defaultEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}

	switch av.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	case reflect.Map:
		return av.Pointer() == bv.Pointer()
	case reflect.Slice:
		return av.Pointer() == bv.Pointer() && av.Len() == bv.Len()
	case reflect.Func:
		return av.IsNil() && bv.IsNil()
	}

	if av.Type().Comparable() {
		return comparableEquals(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// comparableEquals uses == and recovers from the runtime panic raised when an
// interface field holds a non-comparable dynamic value.
func comparableEquals(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}
