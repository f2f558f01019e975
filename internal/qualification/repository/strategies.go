package repository

import (
	"context"
	"errors"
	"fmt"

	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/platform/db"

	"github.com/jackc/pgx/v5"
)

const strategyColumns = `category, initial_wait_days, cooldown_hours, max_sessions_per_week, enabled, updated_at`

// Strategies stores cadence strategies keyed by category.
type Strategies struct {
	pool db.Pool
}

func scanStrategy(row pgx.Row) (domain.CadenceStrategy, error) {
	var (
		s        domain.CadenceStrategy
		category string
	)
	if err := row.Scan(&category, &s.InitialWaitDays, &s.CooldownHours, &s.MaxSessionsPerWeek, &s.Enabled, &s.UpdatedAt); err != nil {
		return domain.CadenceStrategy{}, err
	}
	s.Category = domain.Tier(category)
	return s, nil
}

// Get returns the stored strategy or ErrNotFound.
func (s *Strategies) Get(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error) {
	strategy, err := scanStrategy(s.pool.QueryRow(ctx, `
		SELECT `+strategyColumns+`
		FROM cadence_strategies
		WHERE category = $1
	`, string(category)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CadenceStrategy{}, ErrNotFound
	}
	if err != nil {
		return domain.CadenceStrategy{}, fmt.Errorf("get cadence strategy: %w", err)
	}
	return strategy, nil
}

// List returns every stored strategy ordered by category.
func (s *Strategies) List(ctx context.Context) ([]domain.CadenceStrategy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+strategyColumns+`
		FROM cadence_strategies
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("list cadence strategies: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CadenceStrategy, 0)
	for rows.Next() {
		strategy, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cadence strategy: %w", err)
		}
		items = append(items, strategy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cadence strategies: %w", err)
	}
	return items, nil
}

// UpsertMerge merges patch onto the current row inside one transaction.
// An advisory lock on the category serialises writers even before the row exists.
func (s *Strategies) UpsertMerge(ctx context.Context, category domain.Tier, patch domain.StrategyPatch, validate func(domain.CadenceStrategy) error) (domain.CadenceStrategy, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CadenceStrategy{}, fmt.Errorf("begin strategy update: %w", err)
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "cadence_strategy:"+string(category)); err != nil {
		return domain.CadenceStrategy{}, fmt.Errorf("lock cadence strategy: %w", err)
	}

	current, err := scanStrategy(tx.QueryRow(ctx, `
		SELECT `+strategyColumns+`
		FROM cadence_strategies
		WHERE category = $1
		FOR UPDATE
	`, string(category)))
	if errors.Is(err, pgx.ErrNoRows) {
		current = domain.SafeDefaultStrategy(category)
	} else if err != nil {
		return domain.CadenceStrategy{}, fmt.Errorf("load cadence strategy: %w", err)
	}

	merged := patch.Apply(current)
	if validate != nil {
		if err := validate(merged); err != nil {
			return domain.CadenceStrategy{}, err
		}
	}

	saved, err := scanStrategy(tx.QueryRow(ctx, `
		INSERT INTO cadence_strategies (category, initial_wait_days, cooldown_hours, max_sessions_per_week, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (category) DO UPDATE SET
			initial_wait_days = EXCLUDED.initial_wait_days,
			cooldown_hours = EXCLUDED.cooldown_hours,
			max_sessions_per_week = EXCLUDED.max_sessions_per_week,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING `+strategyColumns,
		string(category), merged.InitialWaitDays, merged.CooldownHours, merged.MaxSessionsPerWeek, merged.Enabled))
	if err != nil {
		return domain.CadenceStrategy{}, fmt.Errorf("upsert cadence strategy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CadenceStrategy{}, fmt.Errorf("commit strategy update: %w", err)
	}
	return saved, nil
}

// SeedDefaults inserts the given strategies where no row exists yet.
// Existing rows are left untouched.
func (s *Strategies) SeedDefaults(ctx context.Context, strategies []domain.CadenceStrategy) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin strategy seed: %w", err)
	}
	defer rollback(ctx, tx)

	inserted := 0
	for _, strategy := range strategies {
		tag, err := tx.Exec(ctx, `
			INSERT INTO cadence_strategies (category, initial_wait_days, cooldown_hours, max_sessions_per_week, enabled)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (category) DO NOTHING
		`, string(strategy.Category), strategy.InitialWaitDays, strategy.CooldownHours, strategy.MaxSessionsPerWeek, strategy.Enabled)
		if err != nil {
			return 0, fmt.Errorf("seed cadence strategy %s: %w", strategy.Category, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit strategy seed: %w", err)
	}
	return inserted, nil
}
