package service

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "glenhance"
	metricsSubsystem = "resolver"
)

type resolverMetrics struct {
	passesTotal   *prometheus.CounterVec
	passDuration  *prometheus.HistogramVec
	entities      *prometheus.GaugeVec
	unresolved    *prometheus.GaugeVec
	lastSuccessTS prometheus.Gauge
}

func newResolverMetrics(reg prometheus.Registerer) *resolverMetrics {
	m := &resolverMetrics{
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "passes_total",
			Help:      "Total number of resolution passes by outcome.",
		}, []string{"status"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pass_duration_seconds",
			Help:      "Resolution pass latency in seconds, from snapshot read to publish.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "entities",
			Help:      "Entities in the published resolution result.",
		}, []string{"kind"}),
		unresolved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "unresolved_entities",
			Help:      "Projects and repositories in the published result that could not be attached.",
		}, []string{"kind"}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last published resolution pass.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.passesTotal, m.passDuration, m.entities, m.unresolved, m.lastSuccessTS)
	}
	return m
}
