package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "{" + l.GetName() + "=" + l.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestMetrics_Collectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RegistrationCreated()
	m.RegistrationCreated()
	m.RegistrationRejected("slots_full")
	m.RegistrationCancelled()
	m.SetOverbookedWeeks(2)
	m.ReconcileRun("ok")

	values := gather(t, reg)
	assert.Equal(t, 2.0, values["carwash_registrations_created_total"])
	assert.Equal(t, 1.0, values["carwash_registrations_rejected_total{reason=slots_full}"])
	assert.Equal(t, 1.0, values["carwash_registrations_cancelled_total"])
	assert.Equal(t, 2.0, values["carwash_overbooked_weeks"])
	assert.Equal(t, 1.0, values["carwash_reconcile_runs_total{result=ok}"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RegistrationCreated()
		m.RegistrationRejected("x")
		m.RegistrationCancelled()
		m.SetOverbookedWeeks(1)
		m.ReconcileRun("error")
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
