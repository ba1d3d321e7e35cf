// Package features provides higher-level atom utilities built on pkg/atom.
//
// # Subsystems
//
// Each subsystem is in its own sub-package and can be imported independently:
//
//   - family: one atom definition per parameter, created on first use
//   - loadable: a synchronous Loading/HasData/HasError view of an async atom
//   - selectatom: a derived slice of another atom with custom equality
//   - reset: atoms that can be restored to their initial value
//
// Usage:
//
//	import "github.com/vango-dev/atom/pkg/features/family"
//	import "github.com/vango-dev/atom/pkg/features/loadable"
//
// See the individual package documentation for detailed usage examples.
package features
