package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/vango-dev/atom/pkg/atom"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordedSpan struct {
	noop.Span
	name   string
	attrs  []attribute.KeyValue
	status codes.Code
	err    error
	ended  bool
	cfg    trace.SpanConfig
	endCfg trace.SpanConfig
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) { s.err = err }

func (s *recordedSpan) End(opts ...trace.SpanEndOption) {
	s.ended = true
	s.endCfg = trace.NewSpanEndConfig(opts...)
}

func (s *recordedSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

type recordingTracer struct {
	noop.Tracer
	spans []*recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordedSpan{name: name, attrs: cfg.Attributes(), cfg: cfg}
	r.spans = append(r.spans, s)
	return ctx, s
}

func (r *recordingTracer) named(name string) []*recordedSpan {
	var out []*recordedSpan
	for _, s := range r.spans {
		if s.name == name {
			out = append(out, s)
		}
	}
	return out
}

func TestObserverCreatesSpans(t *testing.T) {
	tracer := &recordingTracer{}
	count := atom.New(1).WithLabel("count")
	label := atom.Derived(func(get atom.Getter) (string, error) {
		n, err := count.Get(get)
		if n > 1 {
			return "", errors.New("too many")
		}
		return "one", err
	}).WithLabel("label")
	store := atom.NewStore(atom.WithObserver(New(WithTracer(tracer))))

	label.Get(store)
	count.Set(store, 2)
	label.Get(store)

	evals := tracer.named("atom.evaluate")
	if len(evals) != 2 {
		t.Fatalf("expected 2 evaluate spans, got %d", len(evals))
	}
	if v, ok := evals[0].attr("atom.label"); !ok || v.AsString() != "label" {
		t.Errorf("expected atom.label=label, got %v", v)
	}
	if evals[0].status != codes.Ok {
		t.Errorf("expected ok status, got %v", evals[0].status)
	}
	if evals[1].status != codes.Error || evals[1].err == nil {
		t.Errorf("expected an error span, got %v %v", evals[1].status, evals[1].err)
	}

	writes := tracer.named("atom.write")
	if len(writes) != 1 {
		t.Fatalf("expected 1 write span, got %d", len(writes))
	}
	w := writes[0]
	if !w.ended {
		t.Error("expected the span to be ended")
	}
	if w.cfg.Timestamp().IsZero() || w.endCfg.Timestamp().Before(w.cfg.Timestamp()) {
		t.Errorf("expected event timestamps on the span, got %v -> %v", w.cfg.Timestamp(), w.endCfg.Timestamp())
	}
}

func TestObserverFilter(t *testing.T) {
	tracer := &recordingTracer{}
	obs := New(WithTracer(tracer), WithEventFilter(func(e atom.Event) bool {
		return e.Type == atom.EventWrite
	}))
	a := atom.New(0)
	d := atom.Derived(func(get atom.Getter) (int, error) { return a.Get(get) })
	store := atom.NewStore(atom.WithObserver(obs))

	d.Get(store)
	a.Set(store, 1)

	if len(tracer.spans) != 1 || tracer.spans[0].name != "atom.write" {
		t.Errorf("expected only the write span, got %d spans", len(tracer.spans))
	}
}

func TestObserverIgnoresLifecycleEvents(t *testing.T) {
	tracer := &recordingTracer{}
	obs := New(WithTracer(tracer))

	obs.OnEvent(atom.Event{Type: atom.EventMount})
	obs.OnEvent(atom.Event{Type: atom.EventUnmount})

	if len(tracer.spans) != 0 {
		t.Errorf("expected no spans for mount events, got %d", len(tracer.spans))
	}
}

func TestNewUsesGlobalTracer(t *testing.T) {
	obs := New(WithTracerName("test"))
	if obs.tracer == nil {
		t.Fatal("expected a tracer from the global provider")
	}
	obs.OnEvent(atom.Event{Type: atom.EventWrite})
}
