package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions        *prometheus.CounterVec
	StoreErrors      prometheus.Counter
	DegradedDecision prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_ratelimit_decisions_total",
			Help: "Total admission decisions by outcome",
		}, []string{"outcome"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "usergate_ratelimit_store_errors_total",
			Help: "Total rate limit store failures",
		}),
		DegradedDecision: promauto.NewCounter(prometheus.CounterOpts{
			Name: "usergate_ratelimit_degraded_decisions_total",
			Help: "Total decisions taken by the fail mode while the store was unreachable",
		}),
	}
}

func (m *Metrics) RecordDecision(allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) RecordDegraded() {
	if m == nil {
		return
	}
	m.DegradedDecision.Inc()
}
