package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts notification outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Sent          *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planwarden",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notifications delivered to the email transport.",
		}, []string{"kind"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planwarden",
			Subsystem: "notify",
			Name:      "failed_total",
			Help:      "Notifications that could not be rendered, claimed or sent.",
		}, []string{"kind"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planwarden",
			Subsystem: "notify",
			Name:      "suppressed_total",
			Help:      "Notifications suppressed by the re-fire gate.",
		}, []string{"kind"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planwarden",
			Subsystem: "notify",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of notification sweeps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheduler"}),
	}
	if reg != nil {
		reg.MustRegister(m.Sent, m.Failed, m.Skipped, m.SweepDuration)
	}
	return m
}

func (m *Metrics) sent(k Kind) {
	if m != nil {
		m.Sent.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) failed(k Kind) {
	if m != nil {
		m.Failed.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) suppressed(k Kind) {
	if m != nil {
		m.Skipped.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) observeSweep(scheduler string, started time.Time) {
	if m != nil {
		m.SweepDuration.WithLabelValues(scheduler).Observe(time.Since(started).Seconds())
	}
}
