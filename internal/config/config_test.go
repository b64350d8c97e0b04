package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vrp-screener/internal/errors"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, DefaultStrategyConfig().Validate())
	assert.NoError(t, DefaultScoringWeights().Validate())
	assert.NoError(t, DefaultBacktestConfig().Validate())
	assert.NoError(t, DefaultWalkForwardConfig().Validate())
}

func TestStrategyConfigValidation(t *testing.T) {
	cfg := DefaultStrategyConfig()
	cfg.LongDeltaTarget = 0.40 // must stay below the short target
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))

	cfg = DefaultStrategyConfig()
	cfg.RiskBudget = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultStrategyConfig()
	cfg.MaxContracts = 0
	assert.Error(t, cfg.Validate())
}

func TestScoringWeightsMustSumTo100(t *testing.T) {
	w := DefaultScoringWeights()
	w.POPWeight = 31
	err := w.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))

	w = DefaultScoringWeights()
	w.KellyWeightNoGreeks = 20
	assert.Error(t, w.Validate())
}

func TestBacktestConfigSizingValidation(t *testing.T) {
	cfg := DefaultBacktestConfig()
	cfg.SizingEnabled = true
	assert.NoError(t, cfg.Validate())

	cfg.KellyMin = 0.30 // above the max
	assert.Error(t, cfg.Validate())

	cfg = DefaultBacktestConfig()
	cfg.SizingEnabled = true
	cfg.SizingMode = "martingale"
	assert.Error(t, cfg.Validate())

	// Sizing fields are ignored while sizing is off.
	cfg = DefaultBacktestConfig()
	cfg.TotalCapital = 0
	assert.NoError(t, cfg.Validate())
}

func TestWalkForwardConfigValidation(t *testing.T) {
	cfg := DefaultWalkForwardConfig()
	cfg.StepDays = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadCreatesTemplateAndAppliesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	cfg, err := Load(dir)
	require.NoError(t, err)

	// A template lands on disk for the next edit.
	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr)

	assert.InDelta(t, 0.30, cfg.Strategy.ShortDeltaTarget, 1e-9)
	assert.InDelta(t, 1.4, cfg.Backtest.IVInflation, 1e-9)
	assert.Equal(t, 180, cfg.WalkForward.TrainDays)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
db_path = "/tmp/test-screener.db"

[strategy]
min_credit = 0.50

[backtest]
top_k = 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.InDelta(t, 0.50, cfg.Strategy.MinCredit, 1e-9)
	assert.Equal(t, 3, cfg.Backtest.TopK)
	assert.Equal(t, "/tmp/test-screener.db", cfg.DBPath)
	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.30, cfg.Strategy.ShortDeltaTarget, 1e-9)
}

func TestLoadBacktestWeightsInheritScoring(t *testing.T) {
	dir := t.TempDir()
	content := `
[scoring]
pop_weight = 40
liquidity_weight = 15
vrp_weight = 20
kelly_weight = 15
greeks_weight = 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.InDelta(t, 40, cfg.Backtest.Weights.POPWeight, 1e-9,
		"a backtest section without weights inherits the scoring model")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[strategy]
short_delta_target = 1.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))
}
