package scenario

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
)

// Event is one line of a run transcript.
type Event struct {
	// Step is the 1-based step index.
	Step int

	// Kind is a StepKind or "notify".
	Kind  string
	Atom  string
	Value any
	Err   error

	// Failed marks a step that did not meet its expectation or errored.
	Failed bool
}

// Report collects the outcome of a run.
type Report struct {
	Scenario string
	Events   []Event
	Failures []*errors.Diagnostic

	unsubscribe map[string]func()
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// Close removes the subscriptions still held by the run.
func (r *Report) Close() {
	for name, unsub := range r.unsubscribe {
		unsub()
		delete(r.unsubscribe, name)
	}
}

// Run executes the steps of the scenario against store, writing a
// transcript to w. Subscriptions made by the steps stay active until the
// report is closed. Run must be called from the goroutine that owns store.
func (p *Program) Run(store *atom.Store, w io.Writer) *Report {
	r := &Report{
		Scenario:    p.Scenario.Name,
		unsubscribe: make(map[string]func()),
	}
	s := p.Scenario

	for i, step := range s.Steps {
		n := i + 1
		e := p.entries[step.Atom]

		switch step.Kind {
		case StepSet:
			err := e.Set(store, step.Value)
			ev := Event{Step: n, Kind: string(StepSet), Atom: step.Atom, Value: step.Value, Err: err}
			if err != nil {
				ev.Failed = true
				r.fail(errors.FromAtomError(err), s, step.Pos)
			}
			r.record(w, ev)

		case StepRead:
			v, err := e.Get(store)
			ev := Event{Step: n, Kind: string(StepRead), Atom: step.Atom, Value: v, Err: err}
			if d := check(step, v, err); d != nil {
				ev.Failed = true
				r.fail(d, s, step.Pos)
			}
			r.record(w, ev)

		case StepSubscribe:
			name := step.Atom
			if _, ok := r.unsubscribe[name]; ok {
				r.record(w, Event{Step: n, Kind: string(StepSubscribe), Atom: name})
				continue
			}
			r.unsubscribe[name] = store.Subscribe(e.Atom, func() {
				v, err := e.Get(store)
				r.record(w, Event{Step: n, Kind: "notify", Atom: name, Value: v, Err: err})
			})
			r.record(w, Event{Step: n, Kind: string(StepSubscribe), Atom: name})

		case StepUnsubscribe:
			ev := Event{Step: n, Kind: string(StepUnsubscribe), Atom: step.Atom}
			if unsub, ok := r.unsubscribe[step.Atom]; ok {
				unsub()
				delete(r.unsubscribe, step.Atom)
			} else {
				ev.Failed = true
				ev.Err = fmt.Errorf("%s is not subscribed", step.Atom)
				r.fail(errors.New("AT205").Wrap(ev.Err), s, step.Pos)
			}
			r.record(w, ev)
		}
	}
	return r
}

func (r *Report) fail(d *errors.Diagnostic, s *Scenario, pos Position) {
	if d.Location == nil {
		d.WithSource(s.Path, s.source, pos.Line, pos.Column)
	}
	r.Failures = append(r.Failures, d)
}

func (r *Report) record(w io.Writer, ev Event) {
	r.Events = append(r.Events, ev)
	if w == nil {
		return
	}

	var b strings.Builder
	if ev.Kind == "notify" {
		b.WriteString("      notify ")
	} else {
		fmt.Fprintf(&b, "[%d] %s ", ev.Step, ev.Kind)
	}
	b.WriteString(ev.Atom)
	switch {
	case ev.Kind == string(StepSubscribe) || ev.Kind == string(StepUnsubscribe):
	case stderrors.Is(ev.Err, atom.ErrPending):
		b.WriteString(" pending")
	case ev.Err != nil:
		b.WriteString(" error: " + ev.Err.Error())
	default:
		b.WriteString(" = " + FormatValue(ev.Value))
	}
	if ev.Failed {
		b.WriteString(" FAIL")
	}
	b.WriteString("\n")
	io.WriteString(w, b.String())
}

// check compares a read result with the step's expectations.
func check(step Step, v any, err error) *errors.Diagnostic {
	switch {
	case step.ExpectError != "":
		if err == nil || !strings.Contains(err.Error(), step.ExpectError) {
			return errors.New("AT106").
				WithDetail(fmt.Sprintf("Expected %s to fail with %q, got %s.", step.Atom, step.ExpectError, describe(v, err)))
		}
		return nil
	case err != nil:
		return errors.FromAtomError(err)
	case step.HasExpect && !Equal(step.Expect, v):
		return errors.New("AT106").
			WithDetail(fmt.Sprintf("Expected %s to be %s, got %s.", step.Atom, FormatValue(step.Expect), FormatValue(v)))
	}
	return nil
}

func describe(v any, err error) string {
	if err != nil {
		return "error " + err.Error()
	}
	return FormatValue(v)
}

// FormatValue renders v as JSON when possible.
func FormatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Equal compares an expected value from a scenario file with a computed
// one. Numbers compare by value regardless of their Go type.
func Equal(expected, actual any) bool {
	return reflect.DeepEqual(normalize(expected), normalize(actual))
}

func normalize(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}
