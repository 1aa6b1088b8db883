package overseer

import "github.com/prometheus/client_golang/prometheus"

// metricsCollector is the optional Prometheus instrumentation for a
// Supervisor. It stays nil unless WithMetrics is applied; every method
// below is a safe no-op on a nil receiver so call sites never need a
// guard of their own.
type metricsCollector struct {
	children prometheus.Gauge
	spawns   *prometheus.CounterVec
	exits    *prometheus.CounterVec
}

func newMetricsCollector(reg prometheus.Registerer, namespace string) *metricsCollector {
	m := &metricsCollector{
		children: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "children",
			Help:      "Current number of supervised children.",
		}),
		spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Children spawned, labeled by create reason.",
		}, []string{"reason"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Children reaped, labeled by exit reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.children, m.spawns, m.exits)
	return m
}

func (m *metricsCollector) recordSpawn(reason CreateReason, size int) {
	if m == nil {
		return
	}
	m.spawns.WithLabelValues(reason.String()).Inc()
	m.children.Set(float64(size))
}

func (m *metricsCollector) recordExit(reason ExitReason, size int) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(reason.String()).Inc()
	m.children.Set(float64(size))
}
