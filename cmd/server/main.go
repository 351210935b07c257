package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/app"
	"dcv-session-gateway/internal/audit"
	"dcv-session-gateway/internal/config"
	"dcv-session-gateway/internal/health"
	"dcv-session-gateway/internal/logger"
	"dcv-session-gateway/internal/metrics"
	"dcv-session-gateway/internal/server"
	"dcv-session-gateway/internal/server/middleware"
	"dcv-session-gateway/internal/session/handler"
	"dcv-session-gateway/internal/session/service"
	"dcv-session-gateway/internal/telemetry"
	telemetryotel "dcv-session-gateway/internal/telemetry/otel"
	"dcv-session-gateway/internal/telemetry/producer"
)

const (
	healthInterval  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger level comes from config, so fall back to a default logger here.
		logger.New("info", "").Fatal("config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTELServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatal("otel providers", zap.Error(err))
	}
	providers.SetGlobal()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatal("kafka producer", zap.Error(err))
	}
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Info("telemetry kafka producer enabled", zap.String("topic", cfg.TelemetryKafkaTopic))
	}
	emitter := telemetry.Multi(emitters...)

	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("dependencies", zap.Error(err))
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	obs := service.Observers{
		Logger:  log,
		Audit:   audit.NewLogger(log, emitter, middleware.RequestInfo),
		Metrics: reg,
	}
	issuer := service.NewIssuer(deps.Store, deps.Directory, deps.Eligibility, deps.Codec, cfg.Lifetime(), obs)
	authenticator := service.NewAuthenticator(deps.Store, deps.Directory, deps.Codec, obs)
	resolver := service.NewResolver(deps.Store, deps.Directory, app.ResolverConfig(cfg), obs)

	checker := health.NewChecker(deps.Store, deps.Eligibility)
	router, err := server.NewRouter(server.HTTPDeps{
		Logger:         log,
		Routes:         handler.NewHandler(issuer, authenticator, resolver),
		Health:         checker,
		Metrics:        reg,
		Gatherer:       prometheus.DefaultGatherer,
		Telemetry:      emitter,
		TrustedProxies: cfg.TrustedProxiesList(),
		RequestTimeout: cfg.Timeout(),
	})
	if err != nil {
		log.Fatal("router", zap.Error(err))
	}
	httpServer := server.NewHTTPServer(cfg.HTTPAddr, router)

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http serve", zap.Error(err))
		}
	}()

	grpcServer, healthServer := server.NewHealthServer()
	healthDone := make(chan struct{})
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			log.Fatal("listen grpc health", zap.Error(err))
		}
		go func() {
			log.Info("gRPC health server listening", zap.String("addr", cfg.GRPCHealthAddr))
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
		go func() {
			server.WatchHealth(ctx, healthServer, checker, healthInterval, log)
			close(healthDone)
		}()
	} else {
		close(healthDone)
	}

	<-ctx.Done()
	log.Info("shutting down")
	<-healthDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	// Let in-flight async telemetry finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Warn("kafka close", zap.Error(err))
		}
	}
	if err := deps.Close(); err != nil {
		log.Warn("close dependencies", zap.Error(err))
	}
	log.Info("stopped")
}
