// Package metrics holds the Prometheus collectors of the client core. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	drained   *prometheus.CounterVec
	pending   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaptrack_gateway_requests_total",
			Help: "Backend requests by method and outcome (ok or error kind).",
		}, []string{"method", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaptrack_gateway_token_refreshes_total",
			Help: "Token refresh attempts by result.",
		}, []string{"result"}),
		drained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaptrack_queue_drained_items_total",
			Help: "Queue items processed by drain, by result.",
		}, []string{"result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snaptrack_queue_pending_items",
			Help: "Items waiting in the upload queue.",
		}),
	}
	reg.MustRegister(m.requests, m.refreshes, m.drained, m.pending)
	return m
}

func (m *Metrics) Request(method, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) Drained(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.drained.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) Pending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
