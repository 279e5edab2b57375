// Package metrics exposes Prometheus counters for provisioning outcomes and
// entry operations.
package metrics

import (
	"github.com/dmitrijs2005/lazyboy/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "lazyboy"

// Metrics holds the lazyboy collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	provisioned *prometheus.CounterVec
	entryOps    *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "databases_provisioned_total",
			Help:      "Databases initialized, by resulting status.",
		}, []string{"status"}),
		entryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_operations_total",
			Help:      "Entry operations, by operation and result.",
		}, []string{"op", "result"}),
	}
	m.registry.MustRegister(
		m.provisioned,
		m.entryOps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry to serve from.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveProvision counts one initialized database.
func (m *Metrics) ObserveProvision(s status.CreateStatus) {
	m.provisioned.WithLabelValues(s.String()).Inc()
}

// ObserveEntry counts one entry operation.
func (m *Metrics) ObserveEntry(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.entryOps.WithLabelValues(op, result).Inc()
}
