// Package metrics exposes Prometheus collectors for the process
// supervisor and backend probe. This module never starts an HTTP
// server itself; a caller who wants the /metrics endpoint registers
// Collector.Registry (or the individual collectors) on their own mux.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles every gauge/counter/histogram this module emits.
type Collector struct {
	Registry *prometheus.Registry

	Spawns          *prometheus.CounterVec
	ExecutionTime   *prometheus.HistogramVec
	ProbeStatus     *prometheus.GaugeVec
	ProbeLatencySec prometheus.Histogram
}

// NewCollector builds and registers a fresh set of collectors against
// a new registry. Callers that already run a registry can instead wire
// the individual fields into it.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		Spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coderunner",
			Name:      "spawns_total",
			Help:      "Number of child processes spawned, by language and exit kind.",
		}, []string{"language", "exit_kind"}),
		ExecutionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coderunner",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of a single execution, by language and backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"language", "backend"}),
		ProbeStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coderunner",
			Name:      "probe_status",
			Help:      "Last observed container engine probe status (0=not_installed,1=not_running,2=running).",
		}, []string{"engine"}),
		ProbeLatencySec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coderunner",
			Name:      "probe_latency_seconds",
			Help:      "Latency of container engine availability probes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.Spawns, c.ExecutionTime, c.ProbeStatus, c.ProbeLatencySec)
	return c
}
