package scenario

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/atom/internal/errors"
)

// Position is a 1-based location in the scenario file.
type Position struct {
	Line   int
	Column int
}

func positionOf(n *yaml.Node) Position {
	return Position{Line: n.Line, Column: n.Column}
}

// AtomSpec declares one atom.
type AtomSpec struct {
	Name string
	Pos  Position

	// Value is the initial value of a primitive atom.
	Value    any
	HasValue bool

	// Expr is the read expression of a derived atom.
	Expr    string
	ExprPos Position

	// Write lists the targets a write to this atom updates, in file order.
	Write []WriteSpec
}

// Primitive reports whether the atom holds a plain value.
func (a *AtomSpec) Primitive() bool {
	return a.HasValue
}

// Writable reports whether the atom accepts writes.
func (a *AtomSpec) Writable() bool {
	return a.HasValue || len(a.Write) > 0
}

// WriteSpec is one target of a writable atom.
type WriteSpec struct {
	Target string
	Expr   string
	Pos    Position
}

// StepKind identifies a step.
type StepKind string

const (
	StepSet         StepKind = "set"
	StepRead        StepKind = "read"
	StepSubscribe   StepKind = "subscribe"
	StepUnsubscribe StepKind = "unsubscribe"
)

// Step is one scripted action.
type Step struct {
	Kind StepKind
	Atom string
	Pos  Position

	// AtomPos locates the atom name.
	AtomPos Position

	// Value is written by a set step.
	Value any

	// Expect is compared with the value read by a read step.
	Expect    any
	HasExpect bool

	// ExpectError, when set, must be a substring of the read error.
	ExpectError string
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Name  string
	Path  string
	Atoms []*AtomSpec
	Steps []Step

	source []byte
	byName map[string]*AtomSpec
}

// Atom returns the spec named name.
func (s *Scenario) Atom(name string) (*AtomSpec, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// diag builds a diagnostic located at pos.
func (s *Scenario) diag(code string, pos Position) *errors.Diagnostic {
	return errors.New(code).WithSource(s.Path, s.source, pos.Line, pos.Column)
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("AT401").Wrap(err)
	}
	return Parse(path, data)
}

// Parse parses scenario data. path is only used in diagnostics.
func Parse(path string, data []byte) (*Scenario, error) {
	s := &Scenario{
		Path:   path,
		source: data,
		byName: make(map[string]*AtomSpec),
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, s.diag("AT201", Position{Line: yamlErrorLine(err)}).Wrap(err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("AT201").WithDetail(path + " is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, s.diag("AT201", positionOf(root)).
			WithDetail("The top level must be a mapping with atoms: and steps:.")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var err error
		switch key.Value {
		case "name":
			s.Name = val.Value
		case "atoms":
			err = s.parseAtoms(val)
		case "steps":
			err = s.parseSteps(val)
		default:
			err = s.diag("AT201", positionOf(key)).
				WithDetail(fmt.Sprintf("Unknown top-level key %q.", key.Value))
		}
		if err != nil {
			return nil, err
		}
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

func (s *Scenario) parseAtoms(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return s.diag("AT202", positionOf(n)).WithDetail("atoms: must be a mapping of names to declarations.")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if _, dup := s.byName[key.Value]; dup {
			return s.diag("AT206", positionOf(key)).
				WithDetail(fmt.Sprintf("Atom %q is declared twice.", key.Value))
		}
		spec, err := s.parseAtom(key, val)
		if err != nil {
			return err
		}
		s.Atoms = append(s.Atoms, spec)
		s.byName[spec.Name] = spec
	}
	return nil
}

func (s *Scenario) parseAtom(key, n *yaml.Node) (*AtomSpec, error) {
	spec := &AtomSpec{Name: key.Value, Pos: positionOf(key)}
	if n.Kind != yaml.MappingNode {
		return nil, s.diag("AT202", positionOf(n)).
			WithSuggestion("Use value: for a primitive or expr: for a derived atom")
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case "value":
			if err := v.Decode(&spec.Value); err != nil {
				return nil, s.diag("AT202", positionOf(v)).Wrap(err)
			}
			spec.HasValue = true
		case "expr":
			spec.Expr = v.Value
			spec.ExprPos = positionOf(v)
		case "write":
			if v.Kind != yaml.MappingNode {
				return nil, s.diag("AT202", positionOf(v)).
					WithDetail("write: must map target atoms to expressions.")
			}
			for j := 0; j+1 < len(v.Content); j += 2 {
				target, expr := v.Content[j], v.Content[j+1]
				spec.Write = append(spec.Write, WriteSpec{
					Target: target.Value,
					Expr:   expr.Value,
					Pos:    positionOf(target),
				})
			}
		default:
			return nil, s.diag("AT202", positionOf(k)).
				WithDetail(fmt.Sprintf("Unknown atom field %q.", k.Value))
		}
	}

	switch {
	case spec.HasValue && (spec.Expr != "" || len(spec.Write) > 0):
		return nil, s.diag("AT202", spec.Pos).
			WithDetail(fmt.Sprintf("Atom %q mixes value: with expr: or write:.", spec.Name))
	case !spec.HasValue && spec.Expr == "" && len(spec.Write) == 0:
		return nil, s.diag("AT202", spec.Pos).
			WithDetail(fmt.Sprintf("Atom %q has no value:, expr: or write:.", spec.Name))
	}
	return spec, nil
}

func (s *Scenario) parseSteps(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return s.diag("AT205", positionOf(n)).WithDetail("steps: must be a list.")
	}
	for _, item := range n.Content {
		step, err := s.parseStep(item)
		if err != nil {
			return err
		}
		s.Steps = append(s.Steps, step)
	}
	return nil
}

func (s *Scenario) parseStep(n *yaml.Node) (Step, error) {
	step := Step{Pos: positionOf(n)}
	if n.Kind != yaml.MappingNode {
		return step, s.diag("AT205", step.Pos)
	}

	kinds := 0
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case string(StepSet), string(StepRead), string(StepSubscribe), string(StepUnsubscribe):
			kinds++
			step.Kind = StepKind(k.Value)
			step.Atom = v.Value
			step.AtomPos = positionOf(v)
		case "value":
			if err := v.Decode(&step.Value); err != nil {
				return step, s.diag("AT205", positionOf(v)).Wrap(err)
			}
		case "expect":
			if err := v.Decode(&step.Expect); err != nil {
				return step, s.diag("AT205", positionOf(v)).Wrap(err)
			}
			step.HasExpect = true
		case "expectError":
			step.ExpectError = v.Value
		default:
			return step, s.diag("AT205", positionOf(k)).
				WithDetail(fmt.Sprintf("Unknown step field %q.", k.Value))
		}
	}
	if kinds != 1 {
		return step, s.diag("AT205", step.Pos)
	}
	if (step.HasExpect || step.ExpectError != "") && step.Kind != StepRead {
		return step, s.diag("AT205", step.Pos).
			WithDetail("expect: and expectError: only apply to read steps.")
	}
	return step, nil
}

// yamlErrorLine extracts the line from a yaml.v3 error such as
// "yaml: line 3: did not find expected key".
func yamlErrorLine(err error) int {
	msg := err.Error()
	i := strings.Index(msg, "line ")
	if i < 0 {
		return 0
	}
	rest := msg[i+len("line "):]
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(rest)
	}
	line, _ := strconv.Atoi(rest[:end])
	return line
}
