package scenario

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/vango-dev/atom/pkg/atom"
)

// Entry is a built scenario atom.
type Entry struct {
	Spec *AtomSpec

	// Atom is the definition registered with stores and the inspector.
	Atom atom.Definition

	read  atom.Readable[any]
	write func(set atom.Setter, arg any) error
}

// Get reads the entry with get.
func (e *Entry) Get(get atom.Getter) (any, error) {
	return e.read.Get(get)
}

// Set writes arg to the entry through set.
func (e *Entry) Set(set atom.Setter, arg any) error {
	if e.write == nil {
		return &atom.NotWritableError{Atom: e.Atom}
	}
	return e.write(set, arg)
}

// Program is a scenario compiled into atom definitions. Definitions are
// store independent; one Program can run against many stores.
type Program struct {
	Scenario *Scenario

	entries map[string]*Entry
	names   []string
	byID    map[uint64]string
}

// Entry returns the entry named name.
func (p *Program) Entry(name string) (*Entry, bool) {
	e, ok := p.entries[name]
	return e, ok
}

// Names returns atom names in declaration order.
func (p *Program) Names() []string {
	return append([]string(nil), p.names...)
}

// NameOf returns the scenario name of d, or its label when d is not part of
// the program.
func (p *Program) NameOf(d atom.Definition) string {
	if name, ok := p.byID[d.ID()]; ok {
		return name
	}
	return d.String()
}

// Build compiles every atom of s.
func Build(s *Scenario) (*Program, error) {
	p := &Program{
		Scenario: s,
		entries:  make(map[string]*Entry, len(s.Atoms)),
		byID:     make(map[uint64]string, len(s.Atoms)),
	}

	// Expressions look atoms up lazily so declaration order does not matter.
	lookup := func(name string) (*Entry, error) {
		e, ok := p.entries[name]
		if !ok {
			return nil, fmt.Errorf("unknown atom %q", name)
		}
		return e, nil
	}

	for _, spec := range s.Atoms {
		e, err := p.build(spec, lookup)
		if err != nil {
			return nil, err
		}
		p.entries[spec.Name] = e
		p.names = append(p.names, spec.Name)
		p.byID[e.Atom.ID()] = spec.Name
	}

	for _, step := range s.Steps {
		if _, ok := p.entries[step.Atom]; !ok {
			return nil, s.diag("AT203", step.AtomPos).
				WithDetail(fmt.Sprintf("Step %s refers to undeclared atom %q.", step.Kind, step.Atom))
		}
	}
	return p, nil
}

func (p *Program) build(spec *AtomSpec, lookup func(string) (*Entry, error)) (*Entry, error) {
	s := p.Scenario
	e := &Entry{Spec: spec}

	if spec.Primitive() {
		prim := atom.New[any](spec.Value).WithLabel(spec.Name)
		e.Atom, e.read = prim, prim
		e.write = func(set atom.Setter, arg any) error { return prim.Set(set, arg) }
		return e, nil
	}

	read := func(get atom.Getter) (any, error) { return nil, nil }
	if spec.Expr != "" {
		if err := p.checkRefs(spec.Expr, spec.ExprPos); err != nil {
			return nil, err
		}
		prog, err := compile(spec.Expr, false)
		if err != nil {
			return nil, s.diag("AT204", spec.ExprPos).Wrap(err)
		}
		read = func(get atom.Getter) (any, error) {
			return run(prog, get, lookup, nil, false)
		}
	}

	if len(spec.Write) == 0 {
		derived := atom.Derived[any](read).WithLabel(spec.Name)
		e.Atom, e.read = derived, derived
		return e, nil
	}

	type target struct {
		name string
		prog *exprvm.Program
	}
	targets := make([]target, 0, len(spec.Write))
	for _, w := range spec.Write {
		ts, ok := s.Atom(w.Target)
		if !ok {
			return nil, s.diag("AT203", w.Pos).
				WithDetail(fmt.Sprintf("Write target %q is not declared.", w.Target))
		}
		if !ts.Writable() {
			return nil, s.diag("AT202", w.Pos).
				WithDetail(fmt.Sprintf("Write target %q has neither value: nor write:.", w.Target))
		}
		if err := p.checkRefs(w.Expr, w.Pos); err != nil {
			return nil, err
		}
		prog, err := compile(w.Expr, true)
		if err != nil {
			return nil, s.diag("AT204", w.Pos).Wrap(err)
		}
		targets = append(targets, target{name: w.Target, prog: prog})
	}

	writable := atom.DerivedWritable[any, any](read, func(get atom.Getter, set atom.Setter, arg any) error {
		for _, t := range targets {
			v, err := run(t.prog, get, lookup, arg, true)
			if err != nil {
				return err
			}
			dst, err := lookup(t.name)
			if err != nil {
				return err
			}
			if err := dst.Set(set, v); err != nil {
				return err
			}
		}
		return nil
	}).WithLabel(spec.Name)
	e.Atom, e.read = writable, writable
	e.write = func(set atom.Setter, arg any) error { return writable.Write(set, arg) }
	return e, nil
}

// checkRefs reports literal get("name") calls naming undeclared atoms.
func (p *Program) checkRefs(src string, pos Position) error {
	tree, err := parser.Parse(src)
	if err != nil {
		return p.Scenario.diag("AT204", pos).Wrap(err)
	}
	refs := &getRefs{}
	ast.Walk(&tree.Node, refs)
	for _, name := range refs.names {
		if _, ok := p.Scenario.Atom(name); !ok {
			return p.Scenario.diag("AT203", pos).
				WithDetail(fmt.Sprintf("The expression reads undeclared atom %q.", name))
		}
	}
	return nil
}

// getRefs collects the literal arguments of get calls.
type getRefs struct {
	names []string
}

func (r *getRefs) Visit(node *ast.Node) {
	var args []ast.Node
	switch n := (*node).(type) {
	case *ast.CallNode:
		id, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || id.Value != "get" {
			return
		}
		args = n.Arguments
	case *ast.BuiltinNode:
		if n.Name != "get" {
			return
		}
		args = n.Arguments
	default:
		return
	}
	if len(args) == 1 {
		if s, ok := args[0].(*ast.StringNode); ok {
			r.names = append(r.names, s.Value)
		}
	}
}

// compile compiles src with get in scope. Write expressions also see arg,
// whose type is only known at run time.
func compile(src string, withArg bool) (*exprvm.Program, error) {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{
			"get": func(name string) (any, error) { return nil, nil },
		}),
		exprlang.DisableBuiltin("get"),
	}
	if withArg {
		options = append(options, exprlang.AllowUndefinedVariables())
	}
	return exprlang.Compile(src, options...)
}

// run evaluates prog. The first error returned by get is reported as is so
// that pending and cycle errors keep their identity.
func run(prog *exprvm.Program, get atom.Getter, lookup func(string) (*Entry, error), arg any, withArg bool) (any, error) {
	var getErr error
	env := map[string]any{
		"get": func(name string) (any, error) {
			e, err := lookup(name)
			if err == nil {
				var v any
				v, err = e.Get(get)
				if err == nil {
					return v, nil
				}
			}
			if getErr == nil {
				getErr = err
			}
			return nil, err
		},
	}
	if withArg {
		env["arg"] = arg
	}

	out, err := exprlang.Run(prog, env)
	if getErr != nil {
		return nil, getErr
	}
	return out, err
}
