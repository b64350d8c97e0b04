package backtest

import (
	"context"
	"time"

	"vrp-screener/internal/config"
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/logging"
	"vrp-screener/internal/models"
)

// Window is one train/test pair. The test range starts the day after the
// train range ends, so no event can appear in both.
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// Windows lazily yields non-overlapping train/test windows stepped by
// StepDays. It never yields a window whose test range extends past end.
type Windows struct {
	cursor time.Time
	end    time.Time
	cfg    config.WalkForwardConfig
}

// NewWindows creates a window iterator over [start, end].
func NewWindows(start, end time.Time, cfg config.WalkForwardConfig) *Windows {
	return &Windows{cursor: start, end: end, cfg: cfg}
}

// Next returns the next window, or false when the remaining range cannot
// hold a full train+test pair.
func (w *Windows) Next() (Window, bool) {
	trainStart := w.cursor
	trainEnd := trainStart.AddDate(0, 0, w.cfg.TrainDays-1)
	testStart := trainEnd.AddDate(0, 0, 1)
	testEnd := testStart.AddDate(0, 0, w.cfg.TestDays-1)
	if testEnd.After(w.end) {
		return Window{}, false
	}
	w.cursor = w.cursor.AddDate(0, 0, w.cfg.StepDays)
	return Window{
		TrainStart: trainStart,
		TrainEnd:   trainEnd,
		TestStart:  testStart,
		TestEnd:    testEnd,
	}, true
}

// WindowResult is one walk-forward fold: the configuration that won the
// training range and its out-of-sample performance on the test range.
type WindowResult struct {
	Window      Window
	BestConfig  string
	TrainSharpe float64
	TestResult  *models.BacktestResult
}

// WalkForwardResult aggregates out-of-sample performance across all folds.
// Only test-range trades contribute to the aggregate metrics.
type WalkForwardResult struct {
	Windows []WindowResult

	TestTrades    int
	TestWinners   int
	TestWinRate   float64
	TestPnLPct    float64
	AvgTestSharpe float64
}

// WalkForward rolls each candidate configuration through the training
// range of every window, picks the best by training Sharpe (ties keep the
// earlier candidate), and evaluates only the winner out-of-sample. A
// candidate that errors on a training range is logged and dropped from
// that window only.
func (e *Engine) WalkForward(ctx context.Context, candidates []config.BacktestConfig, wfCfg config.WalkForwardConfig, start, end time.Time) (*WalkForwardResult, error) {
	if err := wfCfg.Validate(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConfigError("candidates", 0, "at least one backtest configuration is required")
	}
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	result := &WalkForwardResult{}
	windows := NewWindows(start, end, wfCfg)
	for {
		win, ok := windows.Next()
		if !ok {
			break
		}

		var best *config.BacktestConfig
		bestSharpe := 0.0
		for i := range candidates {
			trainResult, err := e.Run(ctx, candidates[i], win.TrainStart, win.TrainEnd)
			if err != nil {
				e.logger.Warn().Err(err).
					Str("config", candidates[i].Name).
					Time("train_start", win.TrainStart).
					Msg("Training pass failed, dropping candidate for this window")
				continue
			}
			if trainResult.SelectedTrades == 0 {
				continue
			}
			if best == nil || trainResult.SharpeRatio > bestSharpe {
				best = &candidates[i]
				bestSharpe = trainResult.SharpeRatio
			}
		}
		if best == nil {
			e.logger.Debug().Time("train_start", win.TrainStart).
				Msg("No candidate selected trades in training range, skipping window")
			continue
		}

		testResult, err := e.Run(ctx, *best, win.TestStart, win.TestEnd)
		if err != nil {
			return nil, apperrors.Wrap(err, "out-of-sample evaluation")
		}

		logging.LogWindow(e.logger, win.TrainStart, win.TrainEnd, win.TestStart, win.TestEnd, best.Name)
		result.Windows = append(result.Windows, WindowResult{
			Window:      win,
			BestConfig:  best.Name,
			TrainSharpe: bestSharpe,
			TestResult:  testResult,
		})
	}

	aggregateFolds(result)
	return result, nil
}

func aggregateFolds(result *WalkForwardResult) {
	if len(result.Windows) == 0 {
		return
	}
	var sharpeSum float64
	for _, w := range result.Windows {
		result.TestTrades += w.TestResult.SelectedTrades
		result.TestWinners += w.TestResult.Winners
		result.TestPnLPct += w.TestResult.TotalPnLPct
		sharpeSum += w.TestResult.SharpeRatio
	}
	if result.TestTrades > 0 {
		result.TestWinRate = float64(result.TestWinners) / float64(result.TestTrades)
	}
	result.AvgTestSharpe = sharpeSum / float64(len(result.Windows))
}
