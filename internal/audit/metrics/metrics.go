package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Results      *prometheus.CounterVec
	WriteSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_audit_results_total",
			Help: "Total audit results by outcome classification",
		}, []string{"status"}),
		WriteSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "usergate_audit_write_duration_seconds",
			Help:    "Latency of individual audit sink writes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordResult counts one classified outcome.
func (m *Metrics) RecordResult(status string) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(status).Inc()
}

// ObserveWrite records the latency of one sink write.
func (m *Metrics) ObserveWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.WriteSeconds.Observe(d.Seconds())
}
