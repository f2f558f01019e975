package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_cadence_backend/internal/cachebus"
	"lead_cadence_backend/internal/events"
	apphttp "lead_cadence_backend/internal/http"
	"lead_cadence_backend/internal/http/router"
	"lead_cadence_backend/internal/metrics"
	"lead_cadence_backend/internal/qualification"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/service"
	"lead_cadence_backend/internal/scheduler"
	"lead_cadence_backend/platform/config"
	"lead_cadence_backend/platform/db"
	"lead_cadence_backend/platform/logger"
	"lead_cadence_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Scoring config is validated before anything touches the network.
	scoring, err := domain.LoadScoringConfig(cfg.GetScoringConfigPath())
	if err != nil {
		log.Error("invalid scoring configuration", "error", err)
		panic("failed to load scoring configuration: " + err.Error())
	}
	log.Info("scoring configuration loaded",
		"version", scoring.Questionnaire.Version(), "tiers", len(scoring.Policy.Tiers()))

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	recorder, metricsHandler := initMetrics(cfg, log)

	cacheBus, err := cachebus.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize cache bus", "error", err)
		panic("failed to initialize cache bus: " + err.Error())
	}
	defer func() { _ = cacheBus.Close() }()

	rechecks, closeRechecks := initRecheckScheduler(cfg, log)
	if closeRechecks != nil {
		defer closeRechecks()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	qualificationModule, err := qualification.NewModule(ctx, qualification.Deps{
		Pool:      pool,
		Scoring:   scoring,
		EventBus:  eventBus,
		Validator: val,
		Config:    cfg,
		Metrics:   recorder,
		CacheBus:  cacheBus,
		Rechecks:  rechecks,
		Logger:    log,
	})
	if err != nil {
		log.Error("failed to initialize qualification module", "error", err)
		panic("failed to initialize qualification module: " + err.Error())
	}

	// Other replicas announce strategy changes; drop our cached copies.
	listener := cachebus.NewListener(cacheBus, cachebus.StrategyHandler(qualificationModule.Strategies(), log), log, 0)
	go listener.Run(ctx)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:         cfg,
		Logger:         log,
		Health:         db.NewPoolAdapter(pool),
		EventBus:       eventBus,
		Metrics:        recorder,
		MetricsHandler: metricsHandler,
		Modules: []apphttp.Module{
			qualificationModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initMetrics(cfg config.MetricsConfig, log *logger.Logger) (metrics.Recorder, http.Handler) {
	if !cfg.IsMetricsEnabled() {
		return metrics.Noop{}, nil
	}

	m, err := metrics.New(cfg.GetMetricsNamespace(), prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		panic("failed to register metrics: " + err.Error())
	}
	return m, m.Handler()
}

func initRecheckScheduler(cfg *config.Config, log *logger.Logger) (service.RecheckScheduler, func()) {
	if !cfg.IsEligibilityRecheckEnabled() {
		log.Warn("eligibility rechecks disabled (REDIS_URL empty or ELIGIBILITY_RECHECK_ENABLED=false)")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize recheck scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
