// Package errors provides structured diagnostics for atomctl.
//
// A Diagnostic carries a stable code, a category, an optional location in a
// scenario or config file, and a hint. Codes are grouped by category:
//
//	AT1xx  runtime   errors raised by the atom store while running a scenario
//	AT2xx  scenario  malformed or inconsistent scenario files
//	AT3xx  config    invalid atomctl configuration
//	AT4xx  cli       command line usage
//
// # Usage
//
//	err := errors.New("AT203").
//	    WithLocation("counter.yaml", 12, 7).
//	    WithSuggestion("Declare the atom under atoms: before using it in a step")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR AT203: Unknown atom
//	//
//	//   counter.yaml:12:7
//	//
//	//     11 │ steps:
//	//   → 12 │   - set: cuont
//	//        │       ^
//	//     13 │     value: 3
//	//
//	//   Hint: Declare the atom under atoms: before using it in a step
//
// Errors coming out of the atom store are mapped onto runtime codes with
// FromAtomError.
package errors
