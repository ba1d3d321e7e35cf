// Package scenario loads atom graphs and scripted steps from YAML files and
// runs them against an atom store.
//
// # File Structure
//
//	name: counter
//	atoms:
//	  count:
//	    value: 1
//	  doubled:
//	    expr: get("count") * 2
//	  label:
//	    expr: 'get("count") > 3 ? "big" : "small"'
//	  reset:
//	    write:
//	      count: "0"
//	steps:
//	  - subscribe: doubled
//	  - set: count
//	    value: 5
//	  - read: doubled
//	    expect: 10
//	  - set: reset
//	    value: null
//	  - unsubscribe: doubled
//
// An atom with value: is a primitive. An atom with expr: is derived; the
// expression is an expr-lang program where get("name") reads another atom.
// Only the branches actually evaluated become dependencies. An atom with
// write: accepts writes; each entry maps a target atom to an expression over
// arg (the written value) and get.
package scenario
