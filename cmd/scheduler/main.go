package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_cadence_backend/internal/cachebus"
	"lead_cadence_backend/internal/events"
	"lead_cadence_backend/internal/metrics"
	"lead_cadence_backend/internal/qualification"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/scheduler"
	"lead_cadence_backend/platform/config"
	"lead_cadence_backend/platform/db"
	"lead_cadence_backend/platform/logger"
	"lead_cadence_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scoring, err := domain.LoadScoringConfig(cfg.GetScoringConfigPath())
	if err != nil {
		log.Error("invalid scoring configuration", "error", err)
		panic("failed to load scoring configuration: " + err.Error())
	}

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

	eventBus := events.NewInMemoryBus(log)
	eventBus.Subscribe(events.OutreachEligible{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.OutreachEligible)
		if !ok {
			return nil
		}
		log.WithContext(ctx).Info("lead eligible for outreach", "leadId", evt.LeadID, "category", evt.Category)
		return nil
	}))

	cacheBus, err := cachebus.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize cache bus", "error", err)
		panic("failed to initialize cache bus: " + err.Error())
	}
	defer func() { _ = cacheBus.Close() }()

	// Blocked leads are re-queued at their next eligible time.
	rechecks, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize recheck scheduler client", "error", err)
		panic("failed to initialize recheck scheduler client: " + err.Error())
	}
	defer func() { _ = rechecks.Close() }()

	qualificationModule, err := qualification.NewModule(ctx, qualification.Deps{
		Pool:      pool,
		Scoring:   scoring,
		EventBus:  eventBus,
		Validator: validator.New(),
		Config:    cfg,
		Metrics:   metrics.Noop{},
		CacheBus:  cacheBus,
		Rechecks:  rechecks,
		Logger:    log,
	})
	if err != nil {
		log.Error("failed to initialize qualification module", "error", err)
		panic("failed to initialize qualification module: " + err.Error())
	}

	listener := cachebus.NewListener(cacheBus, cachebus.StrategyHandler(qualificationModule.Strategies(), log), log, 0)
	go listener.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, qualificationModule.Service(), eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
