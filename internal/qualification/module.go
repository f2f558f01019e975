// Package qualification provides the lead qualification and outreach cadence
// bounded context module.
package qualification

import (
	"context"
	"fmt"

	"lead_cadence_backend/internal/cachebus"
	"lead_cadence_backend/internal/events"
	apphttp "lead_cadence_backend/internal/http"
	"lead_cadence_backend/internal/metrics"
	"lead_cadence_backend/internal/qualification/cadence"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/handler"
	"lead_cadence_backend/internal/qualification/repository"
	"lead_cadence_backend/internal/qualification/service"
	"lead_cadence_backend/platform/config"
	"lead_cadence_backend/platform/db"
	"lead_cadence_backend/platform/logger"
	"lead_cadence_backend/platform/validator"
)

// Deps are the shared dependencies the module is built from.
type Deps struct {
	Pool      db.Pool
	Scoring   *domain.Scoring
	EventBus  events.Bus
	Validator *validator.Validator
	Config    config.QualificationConfig
	Metrics   metrics.Recorder
	CacheBus  cachebus.Bus
	Rechecks  service.RecheckScheduler
	Logger    *logger.Logger
}

// Module is the qualification bounded context implementing http.Module.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	strategies *cadence.StrategyStore
}

// NewModule wires repositories, the strategy store, the cadence controller and
// the service. Default strategies are seeded for categories without a row.
func NewModule(ctx context.Context, deps Deps) (*Module, error) {
	repo := repository.New(deps.Pool)
	cacheBus := deps.CacheBus
	if cacheBus == nil {
		cacheBus = cachebus.Noop{}
	}

	strategies := cadence.NewStrategyStore(repo.Strategies(), deps.Scoring.Policy, cadence.StoreOptions{
		CacheSize: deps.Config.GetStrategyCacheSize(),
		CacheTTL:  deps.Config.GetStrategyCacheTTL(),
		Notifier:  cacheBus,
		Metrics:   deps.Metrics,
		Logger:    deps.Logger,
	})
	seeded, err := strategies.SeedDefaults(ctx, deps.Scoring.Strategies)
	if err != nil {
		return nil, fmt.Errorf("seed cadence strategies: %w", err)
	}
	if seeded > 0 && deps.Logger != nil {
		deps.Logger.Info("default cadence strategies seeded", "count", seeded)
	}

	attempts := repo.Attempts()
	controller := cadence.NewController(strategies, attempts, repo, deps.EventBus, deps.Metrics, deps.Logger)

	svc := service.New(service.Deps{
		Scoring:    deps.Scoring,
		Records:    repo,
		Attempts:   attempts,
		Strategies: strategies,
		Controller: controller,
		EventBus:   deps.EventBus,
		Metrics:    deps.Metrics,
		Rechecks:   deps.Rechecks,
		Logger:     deps.Logger,
		Strict:     deps.Config.IsStrictCadenceEnforcement(),
	})

	if deps.EventBus != nil {
		cachebus.RegisterHandlers(deps.EventBus, cacheBus)
	}

	return &Module{
		handler:    handler.New(svc, deps.Validator),
		service:    svc,
		strategies: strategies,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "qualification"
}

// Service returns the qualification service for the scheduler and CLI.
func (m *Module) Service() *service.Service {
	return m.service
}

// Strategies returns the cached strategy store so replicas can invalidate it.
func (m *Module) Strategies() *cadence.StrategyStore {
	return m.strategies
}

// RegisterRoutes mounts the qualification routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/cadence-strategies"))
}

var _ apphttp.Module = (*Module)(nil)
