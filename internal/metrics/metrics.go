// Package metrics содержит счётчики Prometheus сервиса записи.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "carwash"

// Metrics - набор коллекторов. Методы безопасны для nil, чтобы сервисы работали без метрик.
type Metrics struct {
	registrationsCreated  prometheus.Counter
	registrationsRejected *prometheus.CounterVec
	cancellations         prometheus.Counter
	overbookedWeeks       prometheus.Gauge
	reconcileRuns         *prometheus.CounterVec
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrationsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_created_total",
			Help:      "Registrations persisted by the booking transaction.",
		}),
		registrationsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_rejected_total",
			Help:      "Booking attempts rejected, by resulting dashboard state.",
		}, []string{"reason"}),
		cancellations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_cancelled_total",
			Help:      "Registrations deleted by owners or admins.",
		}),
		overbookedWeeks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overbooked_weeks",
			Help:      "Weeks whose registration count exceeds the weekly capacity at the last check.",
		}),
		reconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Over-capacity reconciliation runs, by result.",
		}, []string{"result"}),
	}
}

// RegistrationCreated отмечает успешную запись.
func (m *Metrics) RegistrationCreated() {
	if m == nil {
		return
	}
	m.registrationsCreated.Inc()
}

// RegistrationRejected отмечает отказ в записи с причиной reason.
func (m *Metrics) RegistrationRejected(reason string) {
	if m == nil {
		return
	}
	m.registrationsRejected.WithLabelValues(reason).Inc()
}

// RegistrationCancelled отмечает удаление записи.
func (m *Metrics) RegistrationCancelled() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

// SetOverbookedWeeks выставляет число перебронированных недель.
func (m *Metrics) SetOverbookedWeeks(n int) {
	if m == nil {
		return
	}
	m.overbookedWeeks.Set(float64(n))
}

// ReconcileRun отмечает прогон проверки: result = "ok" или "error".
func (m *Metrics) ReconcileRun(result string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
}
