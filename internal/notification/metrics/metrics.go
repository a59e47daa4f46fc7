package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Deliveries  *prometheus.CounterVec
	Attempts    *prometheus.CounterVec
	SendSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_notification_deliveries_total",
			Help: "Terminal notification outcomes by disposition",
		}, []string{"outcome"}),
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_notification_attempts_total",
			Help: "Per-channel send attempts by result",
		}, []string{"channel", "result"}),
		SendSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "usergate_notification_send_duration_seconds",
			Help:    "Latency of individual channel send attempts",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordDelivery counts one terminal dispatch outcome.
func (m *Metrics) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(outcome).Inc()
}

// RecordAttempt counts one channel send attempt.
func (m *Metrics) RecordAttempt(channel, result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(channel, result).Inc()
}

// ObserveSend records the latency of one channel attempt.
func (m *Metrics) ObserveSend(d time.Duration) {
	if m == nil {
		return
	}
	m.SendSeconds.Observe(d.Seconds())
}
