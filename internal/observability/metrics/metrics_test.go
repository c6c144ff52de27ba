package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestClinicMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClinicMetrics(reg)

	m.ObserveBooking("create", OutcomeCreated, 0.01)
	m.ObserveBooking("create", OutcomeConflict, 0.02)
	m.ObserveBooking("create", OutcomeConflict, 0.02)
	m.ObserveAppDataAttempt(false)
	m.ObserveAppDataAttempt(true)
	m.ObserveOutbox("invitation.email", "delivered")

	assert.Equal(t, 2.0, counterValue(t, reg, "clinic_appointments_booking_total",
		map[string]string{"operation": "create", "outcome": "conflict"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_appointments_booking_total",
		map[string]string{"operation": "create", "outcome": "created"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_session_app_data_attempts_total",
		map[string]string{"result": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_outbox_deliveries_total",
		map[string]string{"event_type": "invitation.email", "status": "delivered"}))
}

func TestClinicMetricsNilSafe(t *testing.T) {
	var m *ClinicMetrics
	m.ObserveBooking("create", OutcomeError, 0.1)
	m.ObserveAppDataAttempt(true)
	m.ObserveOutbox("invitation.email", "failed")
}
