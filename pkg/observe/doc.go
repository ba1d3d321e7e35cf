// Package observe holds atom.Observer adapters for external telemetry
// systems.
//
//   - metrics: Prometheus counters, gauges and histograms
//   - tracing: OpenTelemetry spans for evaluations and writes
//
// Combine them with atom.NewMultiObserver:
//
//	store := atom.NewStore(atom.WithObserver(atom.NewMultiObserver(
//	    metrics.New(metrics.WithRegistry(reg)),
//	    tracing.New(),
//	)))
package observe
