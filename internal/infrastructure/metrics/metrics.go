package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification results. Never exposed to API callers, only to operators.
const (
	ResultMatched  = "matched"
	ResultMissing  = "missing"
	ResultExpired  = "expired"
	ResultMismatch = "mismatch"
	ResultRaced    = "raced"
	ResultError    = "error"
)

// Grant results.
const (
	GrantCreated   = "created"
	GrantDuplicate = "duplicate"
	GrantError     = "error"
)

// Metrics owns a private registry so several instances can coexist in tests.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	codesIssued   *prometheus.CounterVec
	verifications *prometheus.CounterVec
	grants        *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "premium",
			Name:      "codes_issued_total",
			Help:      "One-time codes issued, by purpose.",
		}, []string{"purpose"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "premium",
			Name:      "code_verifications_total",
			Help:      "One-time code verification attempts, by purpose and result.",
		}, []string{"purpose", "result"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "premium",
			Name:      "entitlement_grants_total",
			Help:      "Entitlement grant calls, by result.",
		}, []string{"result"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "premium",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations handled, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "premium",
			Name:      "purchase_notifications_total",
			Help:      "Post-grant notifications, by channel and status.",
		}, []string{"channel", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.codesIssued,
		m.verifications,
		m.grants,
		m.confirmations,
		m.notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CodeIssued(purpose string) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) CodeVerified(purpose, result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) Grant(result string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(result).Inc()
}

func (m *Metrics) Confirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}
