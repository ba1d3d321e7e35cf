package atom

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies an engine event.
type EventType string

const (
	EventEvaluate EventType = "atom.evaluate"
	EventWrite    EventType = "atom.write"
	EventMount    EventType = "atom.mount"
	EventUnmount  EventType = "atom.unmount"
	EventNotify   EventType = "atom.notify"
	EventSettle   EventType = "atom.settle"
	EventDiscard  EventType = "atom.discard"
)

// Results reported by evaluate, write and settle events.
const (
	ResultValue     = "value"     // a new value was committed
	ResultUnchanged = "unchanged" // the result equaled the previous value
	ResultPending   = "pending"
	ResultError     = "error"
)

// Event is emitted by a Store as it works. Observers run synchronously on
// the store goroutine and must not call back into the store.
type Event struct {
	Type     EventType
	Atom     Definition
	Start    time.Time
	Duration time.Duration

	Result  string
	Err     error
	Version uint64

	// Changed is set on evaluate events that advanced the version.
	Changed bool

	// Listeners is the number of callbacks run by a notify event.
	Listeners int
}

// Label returns the debug name of the event's atom.
func (e Event) Label() string {
	if e.Atom == nil {
		return ""
	}
	return e.Atom.String()
}

// Observer receives engine events for logging, tracing or metrics.
type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnEvent(Event) {}

// MultiObserver fans out events to several observers.
type MultiObserver []Observer

// NewMultiObserver returns an observer forwarding to all non-nil observers.
func NewMultiObserver(observers ...Observer) MultiObserver {
	out := make(MultiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m MultiObserver) OnEvent(e Event) {
	for _, o := range m {
		o.OnEvent(e)
	}
}

// SlogObserver logs events. Errors are logged at warn level, everything
// else at debug.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver writing to logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(e Event) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("atom", e.Label()),
	}
	if e.Result != "" {
		attrs = append(attrs, slog.String("result", e.Result))
	}
	if e.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", e.Duration))
	}
	if e.Version > 0 {
		attrs = append(attrs, slog.Uint64("version", e.Version))
	}
	if e.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	o.logger.LogAttrs(context.Background(), level, string(e.Type), attrs...)
}
