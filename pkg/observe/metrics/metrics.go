// Package metrics exports atom store activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/atom/pkg/atom"
)

// Config configures the Prometheus observer.
type Config struct {
	// Namespace is the metrics namespace (default: "atom").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for evaluation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// AtomLabel maps an atom to its "atom" label value. The default uses
	// the debug label, which keeps cardinality bounded only when atoms
	// are labeled.
	AtomLabel func(atom.Definition) string
}

// Option configures the Prometheus observer.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithAtomLabel sets how atoms map to the "atom" label.
func WithAtomLabel(fn func(atom.Definition) string) Option {
	return func(c *Config) {
		c.AtomLabel = fn
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "atom",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
		AtomLabel: func(d atom.Definition) string { return d.String() },
	}
}

// Observer records store events as Prometheus metrics.
type Observer struct {
	label func(atom.Definition) string

	evaluations   *prometheus.CounterVec
	evalDuration  *prometheus.HistogramVec
	writes        *prometheus.CounterVec
	mounted       prometheus.Gauge
	notifications prometheus.Counter
	stale         prometheus.Counter
}

// New creates an observer and registers its metrics. It panics if the
// metrics are already registered with the registry, as promauto does.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Observer{
		label: config.AtomLabel,

		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluations_total",
			Help:        "Total number of derived atom evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"atom", "result"}),

		evalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluation_duration_seconds",
			Help:        "Derived atom evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"atom"}),

		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of atom writes",
			ConstLabels: config.ConstLabels,
		}, []string{"atom", "result"}),

		mounted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mounted",
			Help:        "Number of currently mounted atoms",
			ConstLabels: config.ConstLabels,
		}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of subscriber callbacks run",
			ConstLabels: config.ConstLabels,
		}),

		stale: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stale_settlements_total",
			Help:        "Total number of async settlements discarded as stale",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// OnEvent implements atom.Observer.
func (o *Observer) OnEvent(e atom.Event) {
	switch e.Type {
	case atom.EventEvaluate:
		name := o.label(e.Atom)
		o.evaluations.WithLabelValues(name, e.Result).Inc()
		o.evalDuration.WithLabelValues(name).Observe(e.Duration.Seconds())
	case atom.EventWrite:
		o.writes.WithLabelValues(o.label(e.Atom), e.Result).Inc()
	case atom.EventMount:
		o.mounted.Inc()
	case atom.EventUnmount:
		o.mounted.Dec()
	case atom.EventNotify:
		o.notifications.Add(float64(e.Listeners))
	case atom.EventDiscard:
		o.stale.Inc()
	}
}

var _ atom.Observer = (*Observer)(nil)
