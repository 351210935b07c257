package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/metrics"
	"dcv-session-gateway/internal/server/middleware"
	"dcv-session-gateway/internal/telemetry"
)

// Operational routes. They are excluded from http_request telemetry events.
const (
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// HealthChecker is implemented by *health.Checker.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// RouteRegistrar mounts API routes; implemented by the session handler.
type RouteRegistrar interface {
	Register(r gin.IRoutes)
}

// HTTPDeps holds the dependencies of the HTTP router.
type HTTPDeps struct {
	Logger *zap.Logger
	// Routes mounts the session API.
	Routes RouteRegistrar
	// Health backs /healthz. If nil, /healthz always reports ok.
	Health HealthChecker
	// Metrics receives per-request counters; Gatherer backs /metrics. If Gatherer is nil, /metrics is not mounted.
	Metrics  *metrics.Registry
	Gatherer prometheus.Gatherer
	// Telemetry receives one http_request event per API request. May be nil.
	Telemetry telemetry.EventEmitter
	// TrustedProxies lists proxies whose X-Forwarded-For is honored for the client IP. Empty trusts none.
	TrustedProxies []string
	// RequestTimeout bounds each request's context.
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(deps HTTPDeps) (*gin.Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Noop()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(
		middleware.RequestContext(),
		middleware.Recovery(logger),
		middleware.Tracing(),
		middleware.Logging(logger),
		middleware.Metrics(m),
		middleware.Telemetry(deps.Telemetry, map[string]bool{RouteHealth: true, RouteMetrics: true}),
		middleware.Timeout(deps.RequestTimeout),
	)

	r.GET(RouteHealth, healthHandler(deps.Health, logger))
	if deps.Gatherer != nil {
		r.GET(RouteMetrics, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.Routes != nil {
		deps.Routes.Register(r)
	}
	return r, nil
}

func healthHandler(checker HealthChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil {
			if err := checker.Check(c.Request.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
