// Package metrics exposes the relay's Prometheus collectors. They are
// registered with the default registry and served by the HTTP service on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Journal metrics
	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tattle_events_appended_total",
			Help: "Total events appended to the journal",
		},
		[]string{"kind"},
	)

	AppendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tattle_append_failures_total",
			Help: "Total journal appends that failed before acknowledgement",
		},
	)

	// Delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tattle_deliveries_total",
			Help: "Total payload deliveries to recipients",
		},
		[]string{"kind"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tattle_delivery_failures_total",
			Help: "Total deliveries that failed, offline recipients included",
		},
		[]string{"kind"},
	)

	// Connection metrics
	ConnectedAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tattle_connected_agents",
			Help: "Number of currently registered agents",
		},
	)

	RejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tattle_rejected_requests_total",
			Help: "Total rejected requests",
		},
		[]string{"code"},
	)

	// Centrality metrics
	CentralityRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tattle_centrality_runs_total",
			Help: "Total centrality computations",
		},
	)

	CentralityNonConvergence = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tattle_centrality_nonconvergence_total",
			Help: "Total centrality computations that hit the iteration cap",
		},
	)
)
