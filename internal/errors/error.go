package errors

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/vango-dev/atom/pkg/atom"
)

// Category represents the type of error.
type Category string

const (
	CategoryRuntime  Category = "runtime"
	CategoryScenario Category = "scenario"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// Location is a position in a source file. Line and Column are 1-based.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as file:line[:column].
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Diagnostic is a structured error with a code, location and hint.
type Diagnostic struct {
	// Code is a unique identifier such as "AT101".
	Code string

	Category Category

	// Message is a short description.
	Message string

	// Detail is a longer explanation.
	Detail string

	Location *Location

	// Context holds the source lines around Location, starting at line
	// ContextStart. A zero ContextStart centers Context on Location.
	Context      []string
	ContextStart int

	// Suggestion is a hint on how to fix the problem.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	msg := d.Message
	if d.Wrapped != nil {
		msg += ": " + d.Wrapped.Error()
	}
	if d.Code != "" {
		return d.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (d *Diagnostic) Unwrap() error {
	return d.Wrapped
}

// WithLocation sets the location and loads up to five context lines when
// the file can be read.
func (d *Diagnostic) WithLocation(file string, line, column int) *Diagnostic {
	data, err := os.ReadFile(file)
	if err != nil {
		d.Location = &Location{File: file, Line: line, Column: column}
		return d
	}
	return d.WithSource(file, data, line, column)
}

// WithSource sets the location and takes context lines from data, the
// contents of file.
func (d *Diagnostic) WithSource(file string, data []byte, line, column int) *Diagnostic {
	d.Location = &Location{File: file, Line: line, Column: column}
	d.ContextStart, d.Context = contextLines(data, line, 5)
	return d
}

// WithSuggestion adds a fix suggestion.
func (d *Diagnostic) WithSuggestion(s string) *Diagnostic {
	d.Suggestion = s
	return d
}

// WithDetail replaces the detailed explanation.
func (d *Diagnostic) WithDetail(detail string) *Diagnostic {
	d.Detail = detail
	return d
}

// WithContext sets the context lines directly.
func (d *Diagnostic) WithContext(lines []string) *Diagnostic {
	d.Context = lines
	return d
}

// Wrap wraps another error.
func (d *Diagnostic) Wrap(err error) *Diagnostic {
	d.Wrapped = err
	return d
}

// contextLines returns up to size lines of data centered on targetLine,
// and the line number of the first one.
func contextLines(data []byte, targetLine, size int) (int, []string) {
	first := targetLine - size/2
	last := targetLine + size/2
	if first < 1 {
		first = 1
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum >= first && lineNum <= last {
			lines = append(lines, scanner.Text())
		}
		if lineNum > last {
			break
		}
	}
	if len(lines) == 0 {
		return 0, nil
	}
	return first, lines
}

// New creates a Diagnostic from a registered code.
func New(code string) *Diagnostic {
	t, ok := registry[code]
	if !ok {
		return &Diagnostic{Code: code, Message: "Unknown error"}
	}
	return &Diagnostic{
		Code:     code,
		Category: t.Category,
		Message:  t.Message,
		Detail:   t.Detail,
	}
}

// Newf creates an uncoded Diagnostic with a formatted message.
func Newf(category Category, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in a Diagnostic with the given code. Diagnostics are
// returned as is.
func FromError(err error, code string) *Diagnostic {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if stderrors.As(err, &d) {
		return d
	}
	return New(code).Wrap(err)
}

// FromAtomError maps an error returned by the atom store onto a runtime
// code. Errors raised by user read or write functions become AT105.
func FromAtomError(err error) *Diagnostic {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if stderrors.As(err, &d) {
		return d
	}

	var ce *atom.CycleError
	switch {
	case stderrors.As(err, &ce):
		diag := New("AT101").Wrap(err)
		if len(ce.Path) >= 2 {
			diag.WithSuggestion(fmt.Sprintf("Break the dependency between %s and %s", ce.Path[len(ce.Path)-2], ce.Path[len(ce.Path)-1]))
		}
		return diag
	case stderrors.Is(err, atom.ErrNotWritable):
		return New("AT102").Wrap(err).
			WithSuggestion("Add a write: section to the atom, or write to one of its dependencies")
	case stderrors.Is(err, atom.ErrPending):
		return New("AT103").Wrap(err)
	case stderrors.Is(err, atom.ErrEvicted):
		return New("AT104").Wrap(err)
	default:
		return New("AT105").Wrap(err)
	}
}
