package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/manufacturing/internal/application/inventory"
	planningapp "github.com/erp/manufacturing/internal/application/planning"
	"github.com/erp/manufacturing/internal/infrastructure/cache"
	"github.com/erp/manufacturing/internal/infrastructure/config"
	"github.com/erp/manufacturing/internal/infrastructure/event"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/erp/manufacturing/internal/infrastructure/persistence"
	"github.com/erp/manufacturing/internal/infrastructure/scheduler"
	"github.com/erp/manufacturing/internal/infrastructure/storage"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/erp/manufacturing/internal/interfaces/http/handler"
	"github.com/erp/manufacturing/internal/interfaces/http/middleware"
	"github.com/erp/manufacturing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	shutdownTimeout         = 30 * time.Second
	metricsCollectInterval  = 5 * time.Minute
	telemetryFlushTimeout   = 10 * time.Second
	instrumentationName     = "github.com/erp/manufacturing"
	defaultSlowQueryTimeout = 200 * time.Millisecond
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = baseLog.Sync()
	}()

	ctx := context.Background()

	// Telemetry: traces, metrics, logs, profiles. Each provider is a no-op
	// when disabled.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to start profiler", zap.Error(err))
	}

	log := loggerProvider.Bridge(baseLog, zapcore.InfoLevel)
	log.Info("Starting manufacturing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("tracing", tracerProvider.IsEnabled()),
		zap.Bool("metrics", meterProvider.IsEnabled()),
		zap.Bool("otlp_logs", loggerProvider.IsEnabled()),
		zap.Bool("profiling", profiler.IsEnabled()),
	)

	// Database
	slowQuery := cfg.Telemetry.DBSlowQueryThresh
	if slowQuery <= 0 {
		slowQuery = defaultSlowQueryTimeout
	}
	db, err := persistence.NewDatabase(&cfg.Database, slowQuery, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Run lock: Redis when configured, in-process otherwise
	locker, err := cache.NewLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		log.Fatal("Failed to create run locker", zap.Error(err))
	}
	defer func() {
		if err := locker.Close(); err != nil {
			log.Error("Error closing run locker", zap.Error(err))
		}
	}()

	// Domain events go to the audit log
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewLogHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Business metrics with periodic shortage and negative balance gauges
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          meterProvider.Meter(instrumentationName),
		Logger:         log,
		LedgerProvider: telemetry.NewGormLedgerMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	businessMetrics.StartPeriodicCollection(metricsCtx, metricsCollectInterval)
	defer businessMetrics.Stop()

	// Inventory ledger
	balanceRepo := persistence.NewGormInventoryBalanceRepository(db.DB)
	transactionRepo := persistence.NewGormInventoryTransactionRepository(db.DB)
	ledger := inventoryapp.NewLedgerService(balanceRepo, transactionRepo, persistence.NewGormTransactionScope(db.DB), log)
	ledger.SetEventPublisher(eventBus)
	ledger.SetBusinessMetrics(businessMetrics)
	workflows := inventoryapp.NewWorkflows(ledger)

	// MRP
	planningScope := persistence.NewGormPlanningTransactionScope(db.DB)
	runLock := planningapp.NewRunLock(locker, cfg.MRP.RunLockTTL, log)
	generator := planningapp.NewProcurementGenerator(planningScope, runLock, log)
	generator.SetEventPublisher(eventBus)
	generator.SetBusinessMetrics(businessMetrics)
	mrpService := planningapp.NewMRPService(
		planningScope,
		planningapp.NewRequirementCalculator(log),
		generator,
		runLock,
		planningapp.ServiceConfig{
			DefaultHorizonDays: cfg.MRP.DefaultHorizonDays,
			MaxHorizonDays:     cfg.MRP.MaxHorizonDays,
		},
		log,
	)
	mrpService.SetEventPublisher(eventBus)
	mrpService.SetBusinessMetrics(businessMetrics)

	if cfg.MRP.ArchiveEnabled {
		store, err := storage.NewS3ObjectStorage(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create run archive storage", zap.Error(err))
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare run archive bucket", zap.Error(err))
		}
		mrpService.SetArchiver(planningapp.NewRunArchiver(store, cfg.MRP.ArchivePrefix))
		log.Info("MRP run archive enabled",
			zap.String("bucket", cfg.Storage.Bucket),
			zap.String("prefix", cfg.MRP.ArchivePrefix),
		)
	}

	var nightlyRun *scheduler.DailyTrigger
	if cfg.MRP.ScheduleEnabled {
		triggerCfg, err := scheduler.ParseDailyTime(cfg.MRP.ScheduleAt)
		if err != nil {
			log.Fatal("Invalid MRP schedule", zap.Error(err))
		}
		nightlyRun = scheduler.NewDailyTrigger("mrp_nightly", triggerCfg, func(ctx context.Context) error {
			_, err := mrpService.ExecuteMRP(ctx, planningapp.ExecuteMRPRequest{Notes: "scheduled run"})
			return err
		}, log)
		_ = nightlyRun.Start(ctx)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	var httpMeter = meterProvider.Meter(instrumentationName + "/http")
	if !meterProvider.IsEnabled() {
		httpMeter = nil
	}
	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		}),
		logger.GinMiddleware(log),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(httpMeter, log),
		middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		RegisterRoot(handler.NewHealthHandler(cfg.App.Name,
			handler.ReadinessCheck{Name: "database", Pinger: db},
			handler.ReadinessCheck{Name: "run_lock", Pinger: locker},
		)).
		Register(handler.NewInventoryHandler(ledger, workflows)).
		Register(handler.NewOpeningBalanceHandler(inventoryapp.NewOpeningBalanceImporter(ledger, log))).
		Register(handler.NewMRPHandler(mrpService)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if nightlyRun != nil {
		_ = nightlyRun.Stop(shutdownCtx)
	}
	_ = eventBus.Stop(shutdownCtx)
	shutdownTelemetry(log, tracerProvider, meterProvider, loggerProvider, profiler)
	log.Info("Server exited gracefully")
}

// shutdownTelemetry flushes exporters in reverse start order
func shutdownTelemetry(
	log *zap.Logger,
	tp *telemetry.TracerProvider,
	mp *telemetry.MeterProvider,
	lp *telemetry.LoggerProvider,
	profiler *telemetry.Profiler,
) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()

	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush metrics", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	// logs last so the lines above still reach the collector
	if err := lp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush logs", zap.Error(err))
	}
}
