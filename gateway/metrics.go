package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the gateway's Prometheus collectors.
type Metrics struct {
	Pending    *prometheus.GaugeVec
	Queued     *prometheus.GaugeVec
	Resolved   *prometheus.CounterVec
	Violations *prometheus.CounterVec
	Orphans    *prometheus.CounterVec
	Timeouts   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) (m *Metrics) {
	m = &Metrics{
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serialbridge_gateway_pending_requests",
			Help: "Requests pending at the gateway, by kind.",
		}, []string{"kind"}),
		Queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serialbridge_gateway_queued_requests",
			Help: "Requests queued behind a pending request, by kind.",
		}, []string{"kind"}),
		Resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialbridge_gateway_resolved_total",
			Help: "Requests resolved by a delivery, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialbridge_gateway_protocol_violations_total",
			Help: "Requests rejected because one of the same kind was pending.",
		}, []string{"kind"}),
		Orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialbridge_gateway_orphan_deliveries_total",
			Help: "Deliveries dropped because no matching request was pending.",
		}, []string{"kind"}),
		Timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialbridge_gateway_timeouts_total",
			Help: "Requests abandoned before delivery.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.Pending, m.Queued, m.Resolved, m.Violations, m.Orphans, m.Timeouts)
	}

	return
}
