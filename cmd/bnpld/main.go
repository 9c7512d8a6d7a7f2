package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bibbank/bnpl/internal/application/usecase"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/infrastructure/clock"
	"github.com/bibbank/bnpl/internal/infrastructure/config"
	"github.com/bibbank/bnpl/internal/infrastructure/kafka"
	"github.com/bibbank/bnpl/internal/infrastructure/lock"
	pgRepo "github.com/bibbank/bnpl/internal/infrastructure/postgres"
	"github.com/bibbank/bnpl/internal/infrastructure/scheduler"
	grpcPresentation "github.com/bibbank/bnpl/internal/presentation/grpc"
	"github.com/bibbank/bnpl/internal/presentation/rest"
	"github.com/bibbank/bnpl/pkg/auth"
	pkgkafka "github.com/bibbank/bnpl/pkg/kafka"
	"github.com/bibbank/bnpl/pkg/observability"
	pkgpostgres "github.com/bibbank/bnpl/pkg/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bnpl-service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := observability.InitLogger(cfg.Logging())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting bnpl-service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	// --- Observability ------------------------------------------------------
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    true,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }() //nolint:errcheck // best-effort tracer shutdown
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }() //nolint:errcheck

	// --- Database -----------------------------------------------------------
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	pool, err := pkgpostgres.NewPool(dbCtx, cfg.Postgres())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := pkgpostgres.RunMigrations(cfg.Postgres().DSN(), cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// --- Infrastructure adapters -------------------------------------------
	clk := clock.New()
	store := pgRepo.NewLedgerStore(pool, pkgpostgres.DefaultRetryPolicy())
	plans := pgRepo.NewPlanRepo(pool)
	planTypes := pgRepo.NewPlanTypeRepo(pool)
	snapshots := pgRepo.NewSnapshotRepo(pool)
	outbox := pgRepo.NewOutboxRepo(pool)

	producer, err := pkgkafka.NewProducer(cfg.KafkaClient())
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer func() { _ = producer.Close() }()

	redisClient, err := lock.NewClient(ctx, lock.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()
	locks := lock.NewManager(redisClient, logger)

	// --- Domain services & use cases ---------------------------------------
	snapshotBuilder := service.NewSnapshotBuilder()
	allocator := service.NewPaymentAllocator()
	accrualProcessor := service.NewLateInterestAccrualProcessor()

	applyPaymentUC := usecase.NewApplyPaymentUseCase(store, allocator, snapshotBuilder, clk, logger)
	accrueUC := usecase.NewAccrueLateInterestUseCase(store, accrualProcessor, snapshotBuilder, clk, logger)
	runAccrualUC := usecase.NewRunLateInterestAccrualUseCase(plans, accrueUC, clk, logger)

	useCases := grpcPresentation.UseCases{
		CreatePlanType:  usecase.NewCreatePlanTypeUseCase(planTypes, clk),
		ListPlanTypes:   usecase.NewListPlanTypesUseCase(planTypes),
		QuotePlan:       usecase.NewQuotePlanUseCase(planTypes, clk),
		CreatePlan:      usecase.NewCreatePlanUseCase(store, snapshotBuilder, clk),
		TransitionPlan:  usecase.NewTransitionPlanUseCase(store, clk),
		ApplyPayment:    applyPaymentUC,
		GetPlan:         usecase.NewGetPlanUseCase(plans),
		AccrueInterest:  accrueUC,
		ListSnapshots:   usecase.NewListSnapshotsUseCase(plans, snapshots),
		VerifySnapshots: usecase.NewVerifySnapshotsUseCase(plans, snapshots, snapshotBuilder),
	}

	// --- Background workers -------------------------------------------------
	relay := kafka.NewOutboxRelay(outbox, producer, clk, cfg.Kafka.EventsTopic,
		cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, logger)

	consumer, err := pkgkafka.NewConsumer(cfg.KafkaClient(), cfg.Kafka.PaymentsTopic,
		kafka.NewPaymentCapturedHandler(applyPaymentUC, logger), logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	accrualScheduler, err := scheduler.New(scheduler.Config{
		Rule:       cfg.Accrual.Rule,
		LockTTL:    cfg.Accrual.LockTTL,
		MaxRetries: uint64(cfg.Accrual.MaxRetries),
		BatchSize:  cfg.Accrual.BatchSize,
	}, runAccrualUC, locks, clk, logger)
	if err != nil {
		return err
	}

	// --- gRPC server --------------------------------------------------------
	jwtCfg, err := cfg.Auth()
	if err != nil {
		return fmt.Errorf("load JWT settings: %w", err)
	}
	jwtSvc, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		return fmt.Errorf("initialize JWT service: %w", err)
	}

	grpcServer, err := grpcPresentation.NewServer(grpcPresentation.ServerConfig{
		TLSCertFile:     cfg.TLS.CertFile,
		TLSKeyFile:      cfg.TLS.KeyFile,
		TLSClientCAFile: cfg.TLS.ClientCAFile,
		Reflection:      cfg.Reflection,
		RateLimitRPS:    cfg.RateLimit.RPS,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}, grpcPresentation.NewBnplHandler(useCases, logger), jwtSvc, logger)
	if err != nil {
		return err
	}

	// --- HTTP server (health checks, metrics) -------------------------------
	mux := http.NewServeMux()
	rest.NewHealthHandler(pool, metricsHandler, logger).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Start --------------------------------------------------------------
	errCh := make(chan error, 5)

	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := relay.Run(ctx); err != nil {
			errCh <- fmt.Errorf("outbox relay: %w", err)
		}
	}()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("payment consumer: %w", err)
		}
	}()

	go func() {
		if err := accrualScheduler.Run(ctx); err != nil {
			errCh <- fmt.Errorf("accrual scheduler: %w", err)
		}
	}()

	// Wait for shutdown signal.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("component failed", "error", runErr)
		cancel()
	}

	// Graceful shutdown.
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("bnpl-service stopped")
	return runErr
}
