// Package server assembles the HTTP API router and the gRPC health server.
package server

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported alongside the overall ("") status.
const HealthService = "dcv.SessionGateway"

// NewHealthServer returns a gRPC server exposing grpc.health.v1.Health and the health.Server
// whose status WatchHealth keeps current. Both start NOT_SERVING.
func NewHealthServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// WatchHealth runs checker every interval and publishes SERVING or NOT_SERVING until ctx is done.
// On return every service is marked NOT_SERVING so load balancers drain before shutdown.
func WatchHealth(ctx context.Context, hs *health.Server, checker HealthChecker, interval time.Duration, logger *zap.Logger) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := checker.Check(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if ctx.Err() == nil {
				logger.Warn("health check failed", zap.Error(err))
			}
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(HealthService, status)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
