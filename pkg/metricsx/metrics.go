// Package metricsx holds the Prometheus instruments of the auth service.
// A nil *Metrics is valid and records nothing.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "townhall"
	subsystem = "auth"
)

type Metrics struct {
	Registry *prometheus.Registry

	tokensIssued  *prometheus.CounterVec
	revocations   prometheus.Counter
	reaped        *prometheus.CounterVec
	signIns       *prometheus.CounterVec
	qr            *prometheus.CounterVec
	passwordReset *prometheus.CounterVec
}

// New registers every instrument on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "tokens_issued_total",
			Help: "Bearer tokens signed, by kind.",
		}, []string{"kind"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "revocations_total",
			Help: "Tokens added to the revocation registry.",
		}),
		reaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "reaped_total",
			Help: "Expired records removed by housekeeping, by store.",
		}, []string{"store"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "signin_total",
			Help: "Sign-in attempts, by outcome.",
		}, []string{"outcome"}),
		qr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "qr_total",
			Help: "QR login session events.",
		}, []string{"event"}),
		passwordReset: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "password_reset_total",
			Help: "Password reset flow events.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokensIssued,
		m.revocations,
		m.reaped,
		m.signIns,
		m.qr,
		m.passwordReset,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

func (m *Metrics) Reaped(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.WithLabelValues(store).Add(float64(n))
}

func (m *Metrics) SignIn(outcome string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QR(event string) {
	if m == nil {
		return
	}
	m.qr.WithLabelValues(event).Inc()
}

func (m *Metrics) PasswordReset(event string) {
	if m == nil {
		return
	}
	m.passwordReset.WithLabelValues(event).Inc()
}
