// Package cadence decides when a qualified lead may be contacted again and
// keeps the per-category strategies those decisions are based on.
package cadence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lead_cadence_backend/internal/metrics"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/repository"
	"lead_cadence_backend/platform/apperr"
	"lead_cadence_backend/platform/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// StrategyNotifier tells other replicas that a strategy changed.
type StrategyNotifier interface {
	PublishStrategyChanged(ctx context.Context, category string) error
}

// minCacheTTL is the shortest positive TTL handed to the LRU. Its expiry
// ticker runs at ttl/100 and panics on a zero interval.
const minCacheTTL = time.Second

// StrategyStore serves cadence strategies from a short-lived in-process cache
// backed by the strategy repository. Categories without a row behave as the
// disabled safe default.
//
// Every write or invalidation bumps the category's generation. A read only
// fills the cache when the generation it started with is still current, so a
// slow read cannot put a row back that an update already replaced.
type StrategyStore struct {
	repo     repository.StrategyRepository
	policy   *domain.ClassificationPolicy
	cache    *expirable.LRU[domain.Tier, domain.CadenceStrategy]
	mu       sync.Mutex
	gens     map[domain.Tier]uint64
	epoch    uint64
	notifier StrategyNotifier
	metrics  metrics.Recorder
	log      *logger.Logger
}

// StoreOptions configures a StrategyStore.
type StoreOptions struct {
	CacheSize int
	// CacheTTL bounds how long a replica may serve a row changed elsewhere.
	// Zero keeps entries until they are evicted or invalidated; positive
	// values below one second are raised to one second.
	CacheTTL time.Duration
	Notifier  StrategyNotifier
	Metrics   metrics.Recorder
	Logger    *logger.Logger
}

// NewStrategyStore creates a store. Updates are only accepted for tiers known to policy.
func NewStrategyStore(repo repository.StrategyRepository, policy *domain.ClassificationPolicy, opts StoreOptions) *StrategyStore {
	size := opts.CacheSize
	if size <= 0 {
		size = 64
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	ttl := opts.CacheTTL
	if ttl < 0 {
		ttl = 0
	} else if ttl > 0 && ttl < minCacheTTL {
		ttl = minCacheTTL
	}
	return &StrategyStore{
		repo:     repo,
		policy:   policy,
		cache:    expirable.NewLRU[domain.Tier, domain.CadenceStrategy](size, nil, ttl),
		gens:     make(map[domain.Tier]uint64),
		notifier: opts.Notifier,
		metrics:  m,
		log:      log,
	}
}

// Get returns the strategy for category. A missing row is not an error.
func (s *StrategyStore) Get(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error) {
	if cached, ok := s.cache.Get(category); ok {
		return cached, nil
	}

	gen := s.currentGeneration(category)
	strategy, err := s.repo.Get(ctx, category)
	if errors.Is(err, repository.ErrNotFound) {
		strategy = domain.SafeDefaultStrategy(category)
	} else if err != nil {
		s.metrics.StoreError("strategy_get")
		return domain.CadenceStrategy{}, apperr.Transient("cadence strategy store unavailable", err).WithOp("cadence.StrategyStore.Get")
	}

	s.mu.Lock()
	if s.gens[category] == gen.category && s.epoch == gen.epoch {
		s.cache.Add(category, strategy)
	}
	s.mu.Unlock()
	return strategy, nil
}

type generation struct {
	category uint64
	epoch    uint64
}

func (s *StrategyStore) currentGeneration(category domain.Tier) generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return generation{category: s.gens[category], epoch: s.epoch}
}

// forget drops category from the cache and invalidates reads already in flight.
func (s *StrategyStore) forget(category domain.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[category]++
	s.cache.Remove(category)
}

func (s *StrategyStore) forgetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cache.Purge()
}

// List returns a strategy for every tier of the policy, highest tier first.
func (s *StrategyStore) List(ctx context.Context) ([]domain.CadenceStrategy, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		s.metrics.StoreError("strategy_list")
		return nil, apperr.Transient("cadence strategy store unavailable", err).WithOp("cadence.StrategyStore.List")
	}

	byCategory := make(map[domain.Tier]domain.CadenceStrategy, len(stored))
	for _, strategy := range stored {
		byCategory[strategy.Category] = strategy
	}

	tiers := s.policy.Tiers()
	out := make([]domain.CadenceStrategy, 0, len(tiers))
	for _, t := range tiers {
		strategy, ok := byCategory[t.Tier]
		if !ok {
			strategy = domain.SafeDefaultStrategy(t.Tier)
		}
		out = append(out, strategy)
	}
	return out, nil
}

// Update merges patch onto the category's strategy. The local cache entry is
// dropped before returning so the next Get on this replica reads the new row.
func (s *StrategyStore) Update(ctx context.Context, category domain.Tier, patch domain.StrategyPatch) (domain.CadenceStrategy, error) {
	if !s.policy.Has(category) {
		return domain.CadenceStrategy{}, apperr.Validation(fmt.Sprintf("unknown category %q", category)).
			WithDetails(map[string]any{"category": category, "known": s.policy.Tiers()})
	}

	saved, err := s.repo.UpsertMerge(ctx, category, patch, func(merged domain.CadenceStrategy) error {
		return merged.Validate()
	})
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return domain.CadenceStrategy{}, err
		}
		s.metrics.StoreError("strategy_update")
		return domain.CadenceStrategy{}, apperr.Transient("cadence strategy store unavailable", err).WithOp("cadence.StrategyStore.Update")
	}

	s.forget(category)
	if s.notifier != nil {
		if err := s.notifier.PublishStrategyChanged(ctx, string(category)); err != nil {
			s.log.Warn("strategy change broadcast failed", "category", category, "error", err)
		}
	}
	return saved, nil
}

// SeedDefaults inserts strategies for categories without a row.
func (s *StrategyStore) SeedDefaults(ctx context.Context, strategies []domain.CadenceStrategy) (int, error) {
	for _, strategy := range strategies {
		if !s.policy.Has(strategy.Category) {
			return 0, apperr.Configuration(fmt.Sprintf("default strategy for unknown tier %q", strategy.Category))
		}
		if err := strategy.Validate(); err != nil {
			return 0, err
		}
	}

	inserted, err := s.repo.SeedDefaults(ctx, strategies)
	if err != nil {
		s.metrics.StoreError("strategy_seed")
		return 0, apperr.Transient("seed cadence strategies", err).WithOp("cadence.StrategyStore.SeedDefaults")
	}
	s.forgetAll()
	return inserted, nil
}

// Invalidate drops one category from the local cache; an empty category drops everything.
func (s *StrategyStore) Invalidate(category string) {
	if category == "" {
		s.forgetAll()
		return
	}
	s.forget(domain.Tier(category))
}
