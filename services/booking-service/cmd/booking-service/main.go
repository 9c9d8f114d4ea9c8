package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/db"
	"github.com/Omarch29/sloty-saas-appointment-system/libs/grpcx"
	"github.com/Omarch29/sloty-saas-appointment-system/libs/httpx"
	"github.com/Omarch29/sloty-saas-appointment-system/libs/kafkax"
	otelx "github.com/Omarch29/sloty-saas-appointment-system/libs/otel"
	"github.com/Omarch29/sloty-saas-appointment-system/libs/runtime"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/availability"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/grpcserver"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/handlers"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/metrics"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/outbox"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/reservation"
	"github.com/Omarch29/sloty-saas-appointment-system/services/booking-service/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	if err := run(logger, cfg); err != nil {
		logger.Error("booking-service stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg serviceConfig) error {
	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:         int32(cfg.DBMaxConns),
		LockTimeout:      cfg.DBLockTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	store := storage.NewStore(pool)
	m := metrics.New(prometheus.DefaultRegisterer)

	engineOpts := []availability.Option{
		availability.WithMetrics(m),
		availability.WithMaxRange(time.Duration(cfg.MaxQueryRangeDays) * 24 * time.Hour),
	}
	if cfg.MarkOccupancy {
		engineOpts = append(engineOpts, availability.WithOccupancy(store))
	}
	engine := availability.NewEngine(store, logger, engineOpts...)
	reserver := reservation.NewReserver(store, logger,
		reservation.WithTimeout(cfg.ReservationTimeout),
		reservation.WithMetrics(m),
	)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var closeWriter func(context.Context) error
	if brokers := kafkax.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		writer := kafkax.NewWriter(brokers)
		closeWriter = func(context.Context) error { return writer.Close() }
		publisher := outbox.NewPublisher(pool, writer, logger, outbox.PublisherConfig{
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	var closeRedis func(context.Context) error
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closeRedis = func(context.Context) error { return rdb.Close() }
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "sloty:ratelimit:")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	router := chi.NewRouter()
	router.Get("/healthz", runtime.HealthHandler())
	router.Get("/readyz", runtime.ReadyHandler(checks...))
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httpx.RateLimit(limiter, httpx.HeaderThenIP(handlers.TenantHeader), logger, cfg.RateLimitFailOpen))
		}
		handlers.NewBookingHandler(engine, reserver, logger).Register(r)
	})

	httpHandler := httpx.Chain(router,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", handlers.TenantHeader, handlers.IdempotencyHeader, "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(cfg.ReservationTimeout+5*time.Second),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(httpHandler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcserver.RegisterAvailabilityServiceServer(grpcSrv, grpcserver.NewServer(engine, reserver, logger))
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server error", "err", serveErr)
	}

	if err := runtime.Shutdown(cfg.ShutdownTimeout,
		srv.Shutdown,
		gracefulStop(grpcSrv),
		closeWriter,
		closeRedis,
		otelShutdown,
	); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("booking-service stopped")
	return serveErr
}

// gracefulStop drains in-flight RPCs and falls back to a hard stop at the deadline.
func gracefulStop(s *grpc.Server) func(context.Context) error {
	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		}
	}
}
