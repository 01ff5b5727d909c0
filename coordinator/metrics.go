package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the coordinating loop's Prometheus collectors.
type Metrics struct {
	Transfers *prometheus.CounterVec
	Bytes     *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) (m *Metrics) {
	m = &Metrics{
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialbridge_coordinator_transfers_total",
			Help: "Transport operations dispatched, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialbridge_coordinator_bytes_total",
			Help: "Bytes moved through the transport, by kind.",
		}, []string{"kind"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "serialbridge_coordinator_transfer_seconds",
			Help:    "Time from dispatch to delivery, by kind.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.Transfers, m.Bytes, m.Duration)
	}

	return
}
