package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reminder outcomes recorded per processed reminder
const (
	OutcomeSent           = "sent"
	OutcomeNoRecipient    = "no_recipient"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeError          = "error"
	OutcomeSkippedClaimed = "skipped_claimed"
)

// SweepMetrics holds the prometheus collectors of the reminder sweep.
// A nil *SweepMetrics records nothing.
type SweepMetrics struct {
	sweeps   *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewSweepMetrics creates the collectors and registers them with reg when it is non-nil
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	m := &SweepMetrics{
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_sweeps_total",
			Help: "Reminder sweeps by result (ok, load_error).",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_outcomes_total",
			Help: "Reminders handled by sweeps, labeled by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_sweep_duration_seconds",
			Help:    "Wall time of one reminder sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sweeps, m.outcomes, m.duration)
	}
	return m
}

func (m *SweepMetrics) observeSweep(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *SweepMetrics) observeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}
