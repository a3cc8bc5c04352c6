package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts request outcomes.  It also serves as the notification
// dispatcher's observer.
type Metrics struct {
	Intake        *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	AdminUpdates  *prometheus.CounterVec
}

// NewMetrics creates and registers the service metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Intake: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_submissions_total",
			Help: "Upload requests by outcome (ok or error kind)",
		}, []string{"outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_notifications_total",
			Help: "Notification attempts by outcome",
		}, []string{"outcome"}),
		AdminUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_admin_updates_total",
			Help: "Admin batch updates by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveNotification implements notify.Observer.
func (m *Metrics) ObserveNotification(outcome string) {
	m.Notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) intake(outcome string) {
	if m != nil {
		m.Intake.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) adminUpdate(outcome string) {
	if m != nil {
		m.AdminUpdates.WithLabelValues(outcome).Inc()
	}
}
