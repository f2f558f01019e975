package repository

import (
	"context"
	"errors"
	"testing"

	"lead_cadence_backend/internal/qualification/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var strategyColumnNames = []string{"category", "initial_wait_days", "cooldown_hours", "max_sessions_per_week", "enabled", "updated_at"}

func TestStrategyGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM cadence_strategies`).
		WithArgs("warm").
		WillReturnRows(pgxmock.NewRows(strategyColumnNames))

	_, err = New(mock).Strategies().Get(context.Background(), domain.TierWarm)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertMergeStartsFromSafeDefault(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("cadence_strategy:cold").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("cold").
		WillReturnRows(pgxmock.NewRows(strategyColumnNames))
	// Only maxSessionsPerWeek is patched; everything else comes from the disabled default.
	mock.ExpectQuery(`INSERT INTO cadence_strategies`).
		WithArgs("cold", 0, 0, 2, false).
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow("cold", 0, 0, 2, false, now))
	mock.ExpectCommit()

	maxPerWeek := 2
	saved, err := New(mock).Strategies().UpsertMerge(context.Background(), domain.TierCold,
		domain.StrategyPatch{MaxSessionsPerWeek: &maxPerWeek}, func(s domain.CadenceStrategy) error { return s.Validate() })

	require.NoError(t, err)
	assert.Equal(t, 2, saved.MaxSessionsPerWeek)
	assert.False(t, saved.Enabled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMergeMergesOntoExistingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("warm").
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow("warm", 1, 48, 2, true, now))
	mock.ExpectQuery(`INSERT INTO cadence_strategies`).
		WithArgs("warm", 1, 12, 2, true).
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow("warm", 1, 12, 2, true, now))
	mock.ExpectCommit()

	cooldown := 12
	saved, err := New(mock).Strategies().UpsertMerge(context.Background(), domain.TierWarm,
		domain.StrategyPatch{CooldownHours: &cooldown}, nil)

	require.NoError(t, err)
	assert.Equal(t, 12, saved.CooldownHours)
	assert.Equal(t, 1, saved.InitialWaitDays)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMergeValidationRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows(strategyColumnNames).AddRow("hot", 0, 24, 3, true, now))
	mock.ExpectRollback()

	invalid := errors.New("invalid")
	negative := -1
	_, err = New(mock).Strategies().UpsertMerge(context.Background(), domain.TierHot,
		domain.StrategyPatch{CooldownHours: &negative}, func(domain.CadenceStrategy) error { return invalid })

	require.ErrorIs(t, err, invalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDefaultsCountsInsertedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cadence_strategies`).
		WithArgs("hot", 0, 24, 3, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO cadence_strategies`).
		WithArgs("warm", 1, 48, 2, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	inserted, err := New(mock).Strategies().SeedDefaults(context.Background(), []domain.CadenceStrategy{
		{Category: domain.TierHot, CooldownHours: 24, MaxSessionsPerWeek: 3, Enabled: true},
		{Category: domain.TierWarm, InitialWaitDays: 1, CooldownHours: 48, MaxSessionsPerWeek: 2, Enabled: true},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}
