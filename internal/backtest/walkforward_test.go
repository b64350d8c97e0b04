package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-screener/internal/config"
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/store"
)

func TestWindowsDisjointAndBounded(t *testing.T) {
	cfg := config.DefaultWalkForwardConfig() // 180/60/60
	start := day(2024, 1, 1)
	end := day(2024, 12, 31)

	windows := NewWindows(start, end, cfg)
	var collected []Window
	for {
		w, ok := windows.Next()
		if !ok {
			break
		}
		collected = append(collected, w)
	}
	require.NotEmpty(t, collected)

	for i, w := range collected {
		// Test starts the day after training ends: no shared dates.
		assert.Equal(t, w.TrainEnd.AddDate(0, 0, 1), w.TestStart, "window %d", i)
		assert.False(t, w.TestEnd.After(end), "window %d spills past the range end", i)

		// Ranges span the configured day counts inclusive.
		assert.Equal(t, cfg.TrainDays-1, int(w.TrainEnd.Sub(w.TrainStart).Hours())/24, "window %d", i)
		assert.Equal(t, cfg.TestDays-1, int(w.TestEnd.Sub(w.TestStart).Hours())/24, "window %d", i)

		if i > 0 {
			step := collected[i].TrainStart.Sub(collected[i-1].TrainStart)
			assert.Equal(t, cfg.StepDays, int(step.Hours())/24, "window %d", i)
		}
	}
}

func TestWindowsTooShortRange(t *testing.T) {
	cfg := config.DefaultWalkForwardConfig()
	windows := NewWindows(day(2024, 1, 1), day(2024, 3, 1), cfg)
	_, ok := windows.Next()
	assert.False(t, ok, "range shorter than train+test yields no windows")
}

// seedYear loads quarterly earnings events across a year, each with its
// own consistent history.
func seedYear(f *fakeStore, ticker string, year int, actual float64) {
	for _, month := range []time.Month{2, 5, 8, 11} {
		eventDate := day(year, month, 10)
		f.moves = append(f.moves, store.HistoricalMove{
			Ticker:       ticker,
			EarningsDate: eventDate,
			MovePct:      actual,
		})
	}
}

func TestWalkForwardPicksBestCandidate(t *testing.T) {
	f := &fakeStore{}
	// Three years of history so every training range has events with
	// pre-existing moves to score against.
	seedYear(f, "AAA", 2024, 5.0)
	seedYear(f, "AAA", 2025, 5.0)
	seedYear(f, "AAA", 2026, 5.0)
	seedYear(f, "BBB", 2024, 4.0)
	seedYear(f, "BBB", 2025, 4.0)
	seedYear(f, "BBB", 2026, 4.0)

	viable := config.DefaultBacktestConfig()
	viable.Name = "viable"
	dead := config.DefaultBacktestConfig()
	dead.Name = "dead"
	dead.MinScore = 101 // never selects a trade

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.WalkForward(
		context.Background(),
		[]config.BacktestConfig{dead, viable},
		config.DefaultWalkForwardConfig(),
		day(2025, 1, 1), day(2026, 8, 1),
	)
	require.NoError(t, err)
	require.NotEmpty(t, result.Windows)

	for _, w := range result.Windows {
		assert.Equal(t, "viable", w.BestConfig,
			"a candidate that never selects trades can never win a window")
	}
}

func TestWalkForwardAggregatesOnlyTestRanges(t *testing.T) {
	f := &fakeStore{}
	seedYear(f, "AAA", 2024, 5.0)
	seedYear(f, "AAA", 2025, 5.0)
	seedYear(f, "AAA", 2026, 5.0)

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.WalkForward(
		context.Background(),
		[]config.BacktestConfig{config.DefaultBacktestConfig()},
		config.DefaultWalkForwardConfig(),
		day(2025, 1, 1), day(2026, 8, 1),
	)
	require.NoError(t, err)

	total := 0
	winners := 0
	for _, w := range result.Windows {
		total += w.TestResult.SelectedTrades
		winners += w.TestResult.Winners
	}
	assert.Equal(t, total, result.TestTrades)
	assert.Equal(t, winners, result.TestWinners)
	assert.GreaterOrEqual(t, result.TestWinRate, 0.0)
	assert.LessOrEqual(t, result.TestWinRate, 1.0)
}

func TestWalkForwardRejectsOverlappingStep(t *testing.T) {
	cfg := config.DefaultWalkForwardConfig()
	cfg.StepDays = 30 // shorter than the 60-day test range

	err := cfg.Validate()
	require.Error(t, err, "a step shorter than the test range double-counts out-of-sample trades")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)

	engine := NewEngine(&fakeStore{}, zerolog.Nop())
	_, err = engine.WalkForward(
		context.Background(),
		[]config.BacktestConfig{config.DefaultBacktestConfig()},
		cfg,
		day(2025, 1, 1), day(2026, 1, 1),
	)
	require.Error(t, err)
}

func TestWalkForwardRequiresCandidates(t *testing.T) {
	engine := NewEngine(&fakeStore{}, zerolog.Nop())
	_, err := engine.WalkForward(
		context.Background(), nil,
		config.DefaultWalkForwardConfig(),
		day(2025, 1, 1), day(2026, 1, 1),
	)
	require.Error(t, err)
}
