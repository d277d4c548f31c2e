package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "signflow"

var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
	fx.Provide(NewHandler),
)

// Metrics holds the service's collectors.
type Metrics struct {
	Transitions          *prometheus.CounterVec
	IntegrityChecks      *prometheus.CounterVec
	HashDuration         prometheus.Histogram
	BaselineCaptures     *prometheus.CounterVec
	NotificationsHandled *prometheus.CounterVec
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Signature request state transitions by target status.",
		}, []string{"status"}),
		IntegrityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_checks_total",
			Help:      "Sign-time integrity verification outcomes.",
		}, []string{"outcome"}),
		HashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_hash_seconds",
			Help:      "Time spent fetching and hashing document content.",
			Buckets:   prometheus.DefBuckets,
		}),
		BaselineCaptures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baseline_captures_total",
			Help:      "Baseline hash capture attempts by result.",
		}, []string{"result"}),
		NotificationsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications processed by the delivery worker by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.Transitions,
		m.IntegrityChecks,
		m.HashDuration,
		m.BaselineCaptures,
		m.NotificationsHandled,
	)
	return m
}

// NewHandler exposes the registry in the Prometheus text format.
func NewHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
