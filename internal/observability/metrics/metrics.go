package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// ClinicMetrics exposes counters/histograms for scheduling, app-data loads
// and outbox delivery.
type ClinicMetrics struct {
	bookingTotal    *prometheus.CounterVec
	bookingLatency  *prometheus.HistogramVec
	appDataAttempts *prometheus.CounterVec
	outboxTotal     *prometheus.CounterVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "booking_total",
			Help:      "Appointment writes by operation and outcome",
		}, []string{"operation", "outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "booking_latency_seconds",
			Help:      "Latency of appointment writes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		appDataAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "session",
			Name:      "app_data_attempts_total",
			Help:      "App-data load attempts by result",
		}, []string{"result"}),
		outboxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox deliveries by event type and status",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.bookingLatency, m.appDataAttempts, m.outboxTotal)
	return m
}

func (m *ClinicMetrics) ObserveBooking(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(operation, outcome).Inc()
	m.bookingLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *ClinicMetrics) ObserveAppDataAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.appDataAttempts.WithLabelValues(result).Inc()
}

func (m *ClinicMetrics) ObserveOutbox(eventType, status string) {
	if m == nil {
		return
	}
	m.outboxTotal.WithLabelValues(eventType, status).Inc()
}
