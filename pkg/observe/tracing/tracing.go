// Package tracing records atom store activity as OpenTelemetry spans.
//
// Every evaluation, write, settlement and notification becomes one span
// whose start and end timestamps are taken from the event, so spans line up
// with the engine's own timing.
//
// The tracer defaults to the global OpenTelemetry tracer provider. Configure
// it in your main() before creating stores:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
//	store := atom.NewStore(atom.WithObserver(tracing.New()))
package tracing

import (
	"context"

	"github.com/vango-dev/atom/pkg/atom"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name.
const defaultTracerName = "atom"

// Config configures the tracing observer.
type Config struct {
	// TracerName is the name of the tracer (default: "atom"). Ignored when
	// Tracer is set.
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer

	// Filter determines which events to trace. If nil, every traced event
	// type is recorded.
	Filter func(e atom.Event) bool
}

// Option configures the tracing observer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer explicitly.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(e atom.Event) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// Observer turns store events into spans.
type Observer struct {
	tracer trace.Tracer
	filter func(e atom.Event) bool
}

// New creates a tracing observer.
func New(opts ...Option) *Observer {
	config := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer(config.TracerName)
	}
	return &Observer{tracer: config.Tracer, filter: config.Filter}
}

// OnEvent implements atom.Observer.
func (o *Observer) OnEvent(e atom.Event) {
	switch e.Type {
	case atom.EventEvaluate, atom.EventWrite, atom.EventSettle, atom.EventNotify:
	default:
		return
	}
	if o.filter != nil && !o.filter(e) {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("atom.label", e.Label()),
	}
	if e.Atom != nil {
		attrs = append(attrs, attribute.Int64("atom.id", int64(e.Atom.ID())))
	}
	if e.Result != "" {
		attrs = append(attrs, attribute.String("atom.result", e.Result))
	}
	if e.Version > 0 {
		attrs = append(attrs, attribute.Int64("atom.version", int64(e.Version)))
	}
	if e.Type == atom.EventEvaluate {
		attrs = append(attrs, attribute.Bool("atom.changed", e.Changed))
	}
	if e.Type == atom.EventNotify {
		attrs = append(attrs, attribute.Int("atom.listeners", e.Listeners))
	}

	_, span := o.tracer.Start(
		context.Background(),
		string(e.Type),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(e.Start),
	)

	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Start.Add(e.Duration)))
}

var _ atom.Observer = (*Observer)(nil)
