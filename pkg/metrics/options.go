package metrics

import "github.com/prometheus/client_golang/prometheus"

// LatencyBucketsMs covers sub-millisecond grid passes up to multi-second
// suggestion runs. Every histogram in this package observes milliseconds.
var LatencyBucketsMs = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // shared bucket layout

// Option configures a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace replaces the "covergap" namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem replaces the "coverage" subsystem.
func WithSubsystem(sub string) Option {
	return func(m *Manager) {
		if sub != "" {
			m.subsystem = sub
		}
	}
}

// WithNamePrefix prepends prefix_ to every metric name after the subsystem.
func WithNamePrefix(prefix string) Option {
	return func(m *Manager) { m.metricPrefix = prefix }
}

// WithLatencyBuckets overrides LatencyBucketsMs for every histogram.
func WithLatencyBuckets(buckets ...float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = append([]float64(nil), buckets...)
		}
	}
}

// WithJurisdiction stamps a constant jurisdiction label on every collector,
// so several deployments can share one Prometheus.
func WithJurisdiction(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.constLabels["jurisdiction"] = name
		}
	}
}

// Disabled turns every recorder into a no-op.
func Disabled() Option {
	return func(m *Manager) { m.enabled = false }
}

// WithPrometheusRegistry registers collectors on r instead of the default registerer.
func WithPrometheusRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}
