// Package metrics holds the Prometheus collectors of the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dcv_gateway"

// Registry groups every collector the gateway exports. Collectors are registered on the
// Registerer passed to NewRegistry so tests can use an isolated prometheus.Registry.
type Registry struct {
	SessionsIssued      *prometheus.CounterVec
	Authentications     *prometheus.CounterVec
	Resolutions         *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry creates the collectors and registers them on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		SessionsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Session creation attempts by result.",
		}, []string{"result"}),
		Authentications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authentications_total",
			Help:      "Credential authentication attempts by result.",
		}, []string{"result"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Session resolution attempts by result.",
		}, []string{"result"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
	}
}

// Noop returns collectors registered on a private registry, for callers that do not export metrics.
func Noop() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}

// IssueResult counts one session creation outcome. Safe on a nil Registry.
func (r *Registry) IssueResult(result string) {
	if r == nil {
		return
	}
	r.SessionsIssued.WithLabelValues(result).Inc()
}

// AuthResult counts one authentication outcome. Safe on a nil Registry.
func (r *Registry) AuthResult(result string) {
	if r == nil {
		return
	}
	r.Authentications.WithLabelValues(result).Inc()
}

// ResolveResult counts one resolution outcome. Safe on a nil Registry.
func (r *Registry) ResolveResult(result string) {
	if r == nil {
		return
	}
	r.Resolutions.WithLabelValues(result).Inc()
}
