// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors, registered on a private
// registry so test binaries never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SignInsTotal           *prometheus.CounterVec
	TokenRefreshesTotal    *prometheus.CounterVec
	RecoveryCodesSentTotal prometheus.Counter
	PasswordRestoresTotal  *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizdeck_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quizdeck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		SignInsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizdeck_sign_ins_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"}),

		TokenRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizdeck_token_refreshes_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"outcome"}),

		RecoveryCodesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quizdeck_recovery_codes_sent_total",
			Help: "Restoration codes delivered by the mailer.",
		}),

		PasswordRestoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizdeck_password_restores_total",
			Help: "Password restorations by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SignInsTotal,
		m.TokenRefreshesTotal,
		m.RecoveryCodesSentTotal,
		m.PasswordRestoresTotal,
	)
	return m
}

// RegisterDB adds connection pool gauges for the given database handle.
func (m *Metrics) RegisterDB(db *sql.DB) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, "quizdeck"))
}

// Handler returns the Prometheus scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
