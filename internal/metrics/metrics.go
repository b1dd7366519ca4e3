// Package metrics exposes gateway counters over a Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries the gateway's instrumentation. One instance is wired
// through the pipeline at construction.
type Metrics struct {
	registry *prometheus.Registry

	ChallengesIssued  prometheus.Counter
	PaymentsAccepted  prometheus.Counter
	PaymentsRejected  *prometheus.CounterVec
	UpstreamRequests  *prometheus.CounterVec
	UpstreamFailovers prometheus.Counter
	SettlementResults *prometheus.CounterVec
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_payment_challenges_issued_total",
			Help: "402 challenges minted for unpaid requests.",
		}),
		PaymentsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_payments_accepted_total",
			Help: "Receipts that verified and were consumed.",
		}),
		PaymentsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_payments_rejected_total",
			Help: "Receipts rejected before proxying, by reason code.",
		}, []string{"reason"}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Forwarded RPC calls by provider.",
		}, []string{"provider"}),
		UpstreamFailovers: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_upstream_failovers_total",
			Help: "Requests that exhausted every provider.",
		}),
		SettlementResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_settlements_total",
			Help: "Settlement notifications by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
