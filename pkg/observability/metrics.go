package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatflow"

// Metrics groups the engine collectors.
type Metrics struct {
	Hydrations    *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	StoreWrites   *prometheus.CounterVec
	RemoteLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which suits tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hydrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hydrations_total",
				Help:      "Completed hydrations by terminal outcome and snapshot source",
			},
			[]string{"outcome", "source"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Applied answers by destination kind",
			},
			[]string{"destination"},
		),
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_writes_total",
				Help:      "Snapshot writes by target store and result",
			},
			[]string{"target", "result"},
		),
		RemoteLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of remote store calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Hydrations, m.Transitions, m.StoreWrites, m.RemoteLatency)
	}
	return m
}

// ObserveRemote records one remote call.
func (m *Metrics) ObserveRemote(operation string, started time.Time, err error) {
	m.RemoteLatency.WithLabelValues(operation, result(err)).Observe(time.Since(started).Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
