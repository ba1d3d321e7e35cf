package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/vango-dev/atom/pkg/atom"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserverRecordsStoreActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New(WithRegistry(reg))

	count := atom.New(1).WithLabel("count")
	doubled := atom.Derived(func(get atom.Getter) (int, error) {
		n, err := count.Get(get)
		return n * 2, err
	}).WithLabel("doubled")
	store := atom.NewStore(atom.WithObserver(obs))

	unsubscribe := store.Subscribe(doubled, func() {})
	count.Set(store, 2)
	count.Set(store, 2)

	if v := metricCounterValue(t, obs.evaluations.WithLabelValues("doubled", atom.ResultValue)); v != 2 {
		t.Errorf("expected 2 evaluations, got %v", v)
	}
	if n := metricHistogramCount(t, obs.evalDuration.WithLabelValues("doubled")); n != 2 {
		t.Errorf("expected 2 duration samples, got %d", n)
	}
	if v := metricCounterValue(t, obs.writes.WithLabelValues("count", atom.ResultValue)); v != 1 {
		t.Errorf("expected 1 changing write, got %v", v)
	}
	if v := metricCounterValue(t, obs.writes.WithLabelValues("count", atom.ResultUnchanged)); v != 1 {
		t.Errorf("expected 1 no-op write, got %v", v)
	}
	if v := metricGaugeValue(t, obs.mounted); v != 2 {
		t.Errorf("expected 2 mounted atoms, got %v", v)
	}
	if v := metricCounterValue(t, obs.notifications); v != 1 {
		t.Errorf("expected 1 notification, got %v", v)
	}

	unsubscribe()
	if v := metricGaugeValue(t, obs.mounted); v != 0 {
		t.Errorf("expected 0 mounted atoms, got %v", v)
	}
}

func TestObserverCountsStaleSettlements(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New(WithRegistry(reg), WithNamespace("test"))

	f1, resolve1, _ := atom.NewFuture[int]()
	f2, _, _ := atom.NewFuture[int]()
	q := atom.New(1)
	a := atom.Async(func(get atom.Getter) *atom.Future[int] {
		if n, _ := q.Get(get); n == 1 {
			return f1
		}
		return f2
	})
	store := atom.NewStore(atom.WithObserver(obs))

	a.Get(store)
	q.Set(store, 2)
	a.Get(store)
	resolve1(1)

	if v := metricCounterValue(t, obs.stale); v != 1 {
		t.Errorf("expected 1 stale settlement, got %v", v)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "test_stale_settlements_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected metrics registered under the test namespace")
	}
}
