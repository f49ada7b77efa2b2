package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Topology metrics
	InstallsTotal   *prometheus.CounterVec
	RemovalsTotal   *prometheus.CounterVec
	CollisionsTotal prometheus.Counter
	PhysicalNodes   prometheus.Gauge
	VirtualNodes    prometheus.Gauge

	// Lookup metrics
	LookupsTotal *prometheus.CounterVec

	// Disruption metrics
	DisruptionRatio    *prometheus.GaugeVec
	DisruptionChanges  *prometheus.CounterVec
	DisruptionDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers Prometheus metrics with reg.
// A nil reg registers with the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		InstallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chashring_installs_total",
				Help: "Total number of physical node installs",
			},
			[]string{"status"},
		),

		RemovalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chashring_removals_total",
				Help: "Total number of physical node removals",
			},
			[]string{"status"},
		),

		CollisionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chashring_vnode_collisions_total",
				Help: "Total number of virtual nodes skipped because their position was taken",
			},
		),

		PhysicalNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chashring_physical_nodes",
				Help: "Number of physical nodes on the ring",
			},
		),

		VirtualNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chashring_virtual_nodes",
				Help: "Number of virtual nodes on the ring",
			},
		),

		LookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chashring_lookups_total",
				Help: "Total number of key lookups",
			},
			[]string{"status"},
		),

		DisruptionRatio: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chashring_disruption_ratio",
				Help: "Fraction of replayed keys whose owner changed in the last disruption check",
			},
			[]string{"mutation"},
		),

		DisruptionChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chashring_disruption_changes_total",
				Help: "Total number of keys whose owner changed across disruption checks",
			},
			[]string{"mutation", "classification"},
		),

		DisruptionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chashring_disruption_duration_seconds",
				Help:    "Duration of disruption checks",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"mutation"},
		),
	}
}

// RecordInstall records an install attempt and its skipped replicas
func (m *Metrics) RecordInstall(status string, collisions int) {
	m.InstallsTotal.WithLabelValues(status).Inc()
	m.CollisionsTotal.Add(float64(collisions))
}

// RecordRemove records a removal attempt
func (m *Metrics) RecordRemove(status string) {
	m.RemovalsTotal.WithLabelValues(status).Inc()
}

// RecordLookup records a lookup outcome
func (m *Metrics) RecordLookup(status string) {
	m.LookupsTotal.WithLabelValues(status).Inc()
}

// UpdateTopology sets the node gauges
func (m *Metrics) UpdateTopology(physical, virtual int) {
	m.PhysicalNodes.Set(float64(physical))
	m.VirtualNodes.Set(float64(virtual))
}

// RecordDisruption records the outcome of a disruption check
func (m *Metrics) RecordDisruption(mutation, classification string, changes uint64, ratio, duration float64) {
	m.DisruptionRatio.WithLabelValues(mutation).Set(ratio)
	m.DisruptionChanges.WithLabelValues(mutation, classification).Add(float64(changes))
	m.DisruptionDuration.WithLabelValues(mutation).Observe(duration)
}
