// Package metrics exposes Prometheus counters for the split and settlement
// engines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "royalties"

type Metrics struct {
	registry *prometheus.Registry

	SplitsCreated        prometheus.Counter
	SplitResponses       *prometheus.CounterVec
	SplitCapRejections   prometheus.Counter
	SettlementsGenerated prometheus.Counter
	SettlementsReverted  prometheus.Counter
	SettlementRejections *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
	DeliveryRetries      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SplitsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_created_total",
			Help:      "Royalty splits created.",
		}),
		SplitResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_responses_total",
			Help:      "Split invitations answered, by action.",
		}, []string{"action"}),
		SplitCapRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_cap_rejections_total",
			Help:      "Split creations refused because the track would exceed 100 percent.",
		}),
		SettlementsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_generated_total",
			Help:      "Withdrawal records generated.",
		}),
		SettlementsReverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_reverted_total",
			Help:      "Withdrawal records reverted with a compensating credit.",
		}),
		SettlementRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_rejections_total",
			Help:      "Settlement generations refused, by reason.",
		}, []string{"reason"}),
		CollaboratorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Best-effort render or notify calls that failed after commit.",
		}, []string{"collaborator"}),
		DeliveryRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_retries_total",
			Help:      "Outbox delivery attempts, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SplitsCreated,
		m.SplitResponses,
		m.SplitCapRejections,
		m.SettlementsGenerated,
		m.SettlementsReverted,
		m.SettlementRejections,
		m.CollaboratorFailures,
		m.DeliveryRetries,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
