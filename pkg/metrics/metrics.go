// Package metrics counts scan activity in a Prometheus registry that can be
// dumped to a textfile for the node exporter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netinventory"

// Metrics holds the scan collectors. A nil *Metrics discards everything.
type Metrics struct {
	registry *prometheus.Registry

	scanned  prometheus.Counter
	alive    prometheus.Counter
	failures *prometheus.CounterVec
	rtt      prometheus.Histogram
}

// New creates the collectors in a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosts_scanned_total",
			Help:      "Addresses run through the enrichment pipeline.",
		}),
		alive: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosts_alive_total",
			Help:      "Addresses that answered the liveness probe.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Enrichment stages that returned no data because of an error.",
		}, []string{"source"}),
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_rtt_seconds",
			Help:      "Measured ICMP echo round trip time.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2},
		}),
	}
	m.registry.MustRegister(m.scanned, m.alive, m.failures, m.rtt)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) HostScanned() {
	if m == nil {
		return
	}
	m.scanned.Inc()
}

// HostAlive counts a live host and observes its rtt when it was measured
func (m *Metrics) HostAlive(rtt time.Duration, measured bool) {
	if m == nil {
		return
	}
	m.alive.Inc()
	if measured {
		m.rtt.Observe(rtt.Seconds())
	}
}

func (m *Metrics) EnrichmentFailed(source string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(source).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
