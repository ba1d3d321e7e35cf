package scenario

import (
	"fmt"
	"io"
	"strings"

	"github.com/vango-dev/atom/pkg/atom"
)

// Kind describes the entry for graph output.
func (e *Entry) Kind() string {
	switch {
	case e.Spec.Primitive():
		return "primitive"
	case e.Spec.Expr == "":
		return "write-only"
	case len(e.Spec.Write) > 0:
		return "writable"
	default:
		return "derived"
	}
}

// WriteGraph prints every atom with its current value and the edges
// recorded by its last evaluation. format is "text" or "dot". It must be
// called from the goroutine that owns store.
func (p *Program) WriteGraph(store *atom.Store, w io.Writer, format string) error {
	switch format {
	case "", "text":
		return p.writeText(store, w)
	case "dot":
		return p.writeDot(store, w)
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
}

func (p *Program) nameList(defs []atom.Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = p.NameOf(d)
	}
	return out
}

func (p *Program) writeText(store *atom.Store, w io.Writer) error {
	for _, name := range p.names {
		e := p.entries[name]
		var state []string
		if store.IsMounted(e.Atom) {
			state = append(state, "mounted")
		}
		if n := store.Listeners(e.Atom); n > 0 {
			state = append(state, fmt.Sprintf("%d listeners", n))
		}

		line := fmt.Sprintf("%s (%s)", name, e.Kind())
		if store.Has(e.Atom) {
			v, err := store.ReadAny(e.Atom)
			line += " = " + describe(v, err)
		}
		if len(state) > 0 {
			line += " [" + strings.Join(state, ", ") + "]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if deps := p.nameList(store.Dependencies(e.Atom)); len(deps) > 0 {
			if _, err := fmt.Fprintf(w, "  reads: %s\n", strings.Join(deps, ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Program) writeDot(store *atom.Store, w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph atoms {\n")
	for _, name := range p.names {
		e := p.entries[name]
		shape := "ellipse"
		if e.Spec.Primitive() {
			shape = "box"
		}
		style := ""
		if store.IsMounted(e.Atom) {
			style = ", style=bold"
		}
		fmt.Fprintf(&b, "  %q [shape=%s%s];\n", name, shape, style)
	}
	for _, name := range p.names {
		for _, dep := range p.nameList(store.Dependencies(p.entries[name].Atom)) {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, name)
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
