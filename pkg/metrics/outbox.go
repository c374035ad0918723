package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts queued mutation lifecycle transitions.
type OutboxMetrics struct {
	transitions *prometheus.CounterVec
	sweepRows   prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skydesk_outbox_transitions_total",
		Help: "Queued mutation status changes by resulting status.",
	}, []string{"status"})
	sweepRows := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skydesk_outbox_sweep_rows",
		Help:    "Rows selected per outbox sweep.",
		Buckets: []float64{0, 1, 2, 5, 10},
	})
	reg.MustRegister(transitions, sweepRows)
	return &OutboxMetrics{transitions: transitions, sweepRows: sweepRows}
}

// IncTransition records a row entering status.
func (m *OutboxMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *OutboxMetrics) ObserveSweep(rows int) {
	if m == nil || m.sweepRows == nil {
		return
	}
	m.sweepRows.Observe(float64(rows))
}
