package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/platform/logger"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreFromStdin(t *testing.T) {
	out, err := run(t, `{"timeline":"within_3_months","budget":"over_10k","decision_maker":"yes","interests":["solar","other","kayak"]}`,
		"score", "--answers", "-")
	require.NoError(t, err)

	var got scoreOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 70, got.Score)
	assert.Equal(t, "warm", string(got.Classification))
	assert.Equal(t, []string{"kayak"}, got.UnknownChoices["interests"])
}

func TestScoreMissingRequiredFails(t *testing.T) {
	_, err := run(t, `{"timeline":"immediately"}`, "score", "--answers", "-")
	assert.Error(t, err)
}

func TestValidateConfigRejectsBadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: broken
tiers:
  - {tier: hot, threshold: 50}
  - {tier: warm, threshold: 60}
  - {tier: cold, threshold: 0}
questions:
  - {id: q, kind: text, answeredPoints: 10}
`), 0o600))

	_, err := run(t, "", "validate-config", "--config", path)
	assert.Error(t, err)
}

func TestValidateConfigDefaults(t *testing.T) {
	out, err := run(t, "", "validate-config")
	require.NoError(t, err)
	assert.Contains(t, out, "version 2026-q1")
	assert.Contains(t, out, "info-seeker")
}

func TestStrategiesSetRequiresAField(t *testing.T) {
	_, err := run(t, "", "strategies", "set", "warm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}

func TestScoringConfigFromEnvironment(t *testing.T) {
	t.Setenv("QUALIFY_SCORING_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := run(t, "", "validate-config")
	assert.Error(t, err)
}

func TestStrategyStoreListsEveryTier(t *testing.T) {
	scoring, err := domain.LoadScoringConfig("")
	require.NoError(t, err)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStrategyStore(mock, scoring.Policy, logger.Discard())
	// The cache's expiry goroutine starts with the store; it must survive a tick.
	time.Sleep(20 * time.Millisecond)

	mock.ExpectQuery(`FROM cadence_strategies`).
		WillReturnRows(pgxmock.NewRows([]string{"category", "initial_wait_days", "cooldown_hours", "max_sessions_per_week", "enabled", "updated_at"}).
			AddRow("hot", 0, 24, 3, true, time.Now()))

	strategies, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, strategies, len(scoring.Policy.Tiers()))

	var out bytes.Buffer
	require.NoError(t, writeStrategyTable(&out, strategies))
	assert.Contains(t, out.String(), "CATEGORY")
	assert.Regexp(t, `hot\s+true\s+0\s+24\s+3`, out.String())
	assert.Regexp(t, `info-seeker\s+false`, out.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
