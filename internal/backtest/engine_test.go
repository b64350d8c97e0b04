package backtest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-screener/internal/config"
	"vrp-screener/internal/models"
	"vrp-screener/internal/store"
)

// fakeStore is an in-memory MoveStore for engine tests.
type fakeStore struct {
	moves []store.HistoricalMove
	saved []*models.BacktestResult
}

func (f *fakeStore) SaveMove(_ context.Context, move store.HistoricalMove) error {
	f.moves = append(f.moves, move)
	return nil
}

func (f *fakeStore) HistoricalMoves(_ context.Context, ticker string, before time.Time, limit int) ([]store.HistoricalMove, error) {
	var out []store.HistoricalMove
	for _, m := range f.moves {
		if m.Ticker == ticker && m.EarningsDate.Before(before) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarningsDate.After(out[j].EarningsDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) EarningsEvents(_ context.Context, start, end time.Time) ([]store.EarningsEvent, error) {
	var out []store.EarningsEvent
	for _, m := range f.moves {
		if !m.EarningsDate.Before(start) && !m.EarningsDate.After(end) {
			out = append(out, store.EarningsEvent{
				Ticker:        m.Ticker,
				EarningsDate:  m.EarningsDate,
				ActualMovePct: m.MovePct,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarningsDate.Before(out[j].EarningsDate) })
	return out, nil
}

func (f *fakeStore) SaveBacktestResult(_ context.Context, result *models.BacktestResult) error {
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// seedQuarterly loads quarterly moves for a ticker ending the quarter
// before the given date.
func seedQuarterly(f *fakeStore, ticker string, before time.Time, moves []float64) {
	for i, pct := range moves {
		f.moves = append(f.moves, store.HistoricalMove{
			Ticker:       ticker,
			EarningsDate: before.AddDate(0, -3*(len(moves)-i), 0),
			MovePct:      pct,
		})
	}
}

func TestRunSelectsConsistentMover(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	seedQuarterly(f, "AAA", eventDate, []float64{6.1, 5.9, 6.0, 6.0})
	// The event itself: a 5% actual move, inside the 8.4% implied.
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "AAA", EarningsDate: eventDate, MovePct: 5.0})

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), config.DefaultBacktestConfig(), day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Opportunities)
	assert.Equal(t, 1, result.SelectedTrades)
	assert.Equal(t, 1, result.Winners)
	assert.Equal(t, 0, result.Losers)
	assert.Equal(t, 1.0, result.WinRate)
	assert.Positive(t, result.TotalPnLPct)

	// Exactly one trade gives no variance estimate; Sharpe must be the
	// zero guard value, not NaN.
	assert.Zero(t, result.SharpeRatio)

	trade := result.Trades[0]
	assert.Equal(t, "AAA", trade.Ticker)
	assert.Equal(t, 1, trade.Rank)
	assert.True(t, trade.Selected)
	assert.InDelta(t, 6.0, trade.AvgHistoricalMove, 0.1)
	assert.Greater(t, trade.Consistency, 0.9, "near-identical moves are highly consistent")
}

func TestRunSkipsEventsWithoutHistory(t *testing.T) {
	f := &fakeStore{}
	// A single event with no prior moves at all.
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "NEW", EarningsDate: day(2026, 2, 10), MovePct: 9.0})

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), config.DefaultBacktestConfig(), day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	assert.Zero(t, result.Opportunities)
	assert.Zero(t, result.SelectedTrades)
	assert.Empty(t, result.Trades)
}

func TestRunZeroedResultWhenNothingSelected(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	seedQuarterly(f, "AAA", eventDate, []float64{6.0, 6.0, 6.0})
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "AAA", EarningsDate: eventDate, MovePct: 5.0})

	cfg := config.DefaultBacktestConfig()
	cfg.MinScore = 101 // unreachable

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), cfg, day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err, "empty selection is a result, not an error")

	assert.Equal(t, 1, result.Opportunities)
	assert.Zero(t, result.SelectedTrades)
	assert.Zero(t, result.WinRate)
	assert.Zero(t, result.SharpeRatio)
	assert.Zero(t, result.TotalPnLPct)
	assert.Zero(t, result.MaxDrawdown)
}

func TestRunSingleHistoricalMoveSoftConsistency(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	seedQuarterly(f, "AAA", eventDate, []float64{7.0})
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "AAA", EarningsDate: eventDate, MovePct: 4.0})

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), config.DefaultBacktestConfig(), day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.InDelta(t, 0.6, result.Trades[0].Consistency, 1e-9)
}

func TestRunRespectsNQuarters(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	// 12 quarters of 4% history, then 2 recent quarters of 10%.
	seedQuarterly(f, "AAA", eventDate.AddDate(0, -6, 0), []float64{4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4})
	seedQuarterly(f, "AAA", eventDate, []float64{10, 10})
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "AAA", EarningsDate: eventDate, MovePct: 5.0})

	cfg := config.DefaultBacktestConfig()
	cfg.NQuarters = 2

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), cfg, day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.InDelta(t, 10.0, result.Trades[0].AvgHistoricalMove, 1e-9,
		"only the most recent quarters feed the average")
}

func TestRunPnLArithmetic(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	seedQuarterly(f, "AAA", eventDate, []float64{6.0, 6.0, 6.0, 6.0})
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "AAA", EarningsDate: eventDate, MovePct: 5.0})

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), config.DefaultBacktestConfig(), day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	// implied = 6.0 * 1.4 = 8.4
	// premium = 0.5*8.4 - 0.05 = 4.15
	// exit    = max(0, 5.0-8.4) + 0.10*8.4 + 0.05 = 0.89
	// comm    = 4 * 0.65 * 2 / 100 = 0.052
	assert.InDelta(t, 4.15-0.89-0.052, result.Trades[0].SimulatedPnLPct, 1e-9)
}

func TestRunTopKBound(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	tickers := []string{"AAA", "BBB", "CCC", "DDD"}
	for _, ticker := range tickers {
		seedQuarterly(f, ticker, eventDate, []float64{6.0, 6.0, 6.0})
		f.moves = append(f.moves, store.HistoricalMove{Ticker: ticker, EarningsDate: eventDate, MovePct: 5.0})
	}

	cfg := config.DefaultBacktestConfig()
	cfg.TopK = 2

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), cfg, day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Opportunities)
	assert.Equal(t, 2, result.SelectedTrades)
}

func TestRunSharpeZeroVarianceGuard(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	// Two identical setups produce identical P&L: zero variance.
	for _, ticker := range []string{"AAA", "BBB"} {
		seedQuarterly(f, ticker, eventDate, []float64{6.0, 6.0, 6.0})
		f.moves = append(f.moves, store.HistoricalMove{Ticker: ticker, EarningsDate: eventDate, MovePct: 5.0})
	}

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), config.DefaultBacktestConfig(), day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	assert.Equal(t, 2, result.SelectedTrades)
	assert.Zero(t, result.SharpeRatio)
}

// seedCurveFixture loads an early erratic loser (lower score) and a later
// consistent winner (higher score), so rank order and date order disagree.
func seedCurveFixture(f *fakeStore) (loserDate, winnerDate time.Time) {
	loserDate = day(2026, 2, 5)
	seedQuarterly(f, "LOSS", loserDate, []float64{3.0, 9.0, 3.0, 9.0})
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "LOSS", EarningsDate: loserDate, MovePct: 20.0})

	winnerDate = day(2026, 2, 20)
	seedQuarterly(f, "WIN", winnerDate, []float64{6.0, 6.0, 6.0, 6.0})
	f.moves = append(f.moves, store.HistoricalMove{Ticker: "WIN", EarningsDate: winnerDate, MovePct: 5.0})
	return loserDate, winnerDate
}

func TestRunDrawdownFollowsEventOrder(t *testing.T) {
	f := &fakeStore{}
	seedCurveFixture(f)

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), config.DefaultBacktestConfig(), day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)
	require.Equal(t, 2, result.SelectedTrades)

	var loserPnL, winnerPnL float64
	for _, trade := range result.Trades {
		switch trade.Ticker {
		case "LOSS":
			loserPnL = trade.SimulatedPnLPct
		case "WIN":
			winnerPnL = trade.SimulatedPnLPct
		}
	}
	require.Negative(t, loserPnL)
	require.Positive(t, winnerPnL)

	// The winner outranks the loser, but the loss lands first in time: the
	// trough is off the untouched starting equity of 100, not off a curve
	// that banked the win before absorbing the loss.
	assert.InDelta(t, -loserPnL/100, result.MaxDrawdown, 1e-9)
	assert.Greater(t, result.MaxDrawdown, -loserPnL/(100+winnerPnL),
		"drawdown measured in score-rank order understates the loss")
}

func TestRunSizedDrawdownFollowsEventOrder(t *testing.T) {
	f := &fakeStore{}
	seedCurveFixture(f)

	cfg := config.DefaultBacktestConfig()
	cfg.SizingEnabled = true
	cfg.SizingMode = config.SizingEqual
	cfg.TotalCapital = 10000

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), cfg, day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)
	require.Equal(t, 2, result.SelectedTrades)

	var loserUSD float64
	for _, trade := range result.Trades {
		if trade.Ticker == "LOSS" {
			loserUSD, _ = trade.SimulatedPnLUSD.Float64()
		}
	}
	require.Negative(t, loserUSD)

	assert.InDelta(t, -loserUSD/cfg.TotalCapital, result.MaxDrawdown, 1e-9)
}

func TestRunKellySizing(t *testing.T) {
	f := &fakeStore{}
	eventDate := day(2026, 2, 10)
	for _, ticker := range []string{"AAA", "BBB"} {
		seedQuarterly(f, ticker, eventDate, []float64{6.0, 6.0, 6.0})
		f.moves = append(f.moves, store.HistoricalMove{Ticker: ticker, EarningsDate: eventDate, MovePct: 5.0})
	}

	cfg := config.DefaultBacktestConfig()
	cfg.SizingEnabled = true
	cfg.TotalCapital = 10000

	engine := NewEngine(f, zerolog.Nop())
	result, err := engine.Run(context.Background(), cfg, day(2026, 2, 1), day(2026, 2, 28))
	require.NoError(t, err)

	// All winners: the Kelly fraction sits at the upper clamp.
	assert.InDelta(t, cfg.KellyMax, result.KellyFraction, 1e-9)
	assert.False(t, result.TotalPnLUSD.IsZero())
	for _, trade := range result.Trades {
		if trade.Selected {
			assert.False(t, trade.SimulatedPnLUSD.IsZero())
		}
	}
}

func TestKellyFractionClamping(t *testing.T) {
	cfg := config.DefaultBacktestConfig()

	// Marginal edge clamps to the floor.
	assert.InDelta(t, cfg.KellyMin, kellyFraction(cfg, 0.50, 1.0, 1.0), 1e-9)
	// Huge edge clamps to the ceiling.
	assert.InDelta(t, cfg.KellyMax, kellyFraction(cfg, 0.90, 3.0, 1.0), 1e-9)
	// No losses defaults to the ceiling.
	assert.InDelta(t, cfg.KellyMax, kellyFraction(cfg, 1.0, 2.0, 0), 1e-9)
	// In-band edge passes through: f = (0.6*1.5 - 0.4)/1.5 = 0.3333 -> clamped 0.25.
	assert.InDelta(t, cfg.KellyMax, kellyFraction(cfg, 0.60, 1.5, 1.0), 1e-9)
	// Genuinely in-band: f = (0.55*1.2 - 0.45)/1.2 = 0.175.
	assert.InDelta(t, 0.175, kellyFraction(cfg, 0.55, 1.2, 1.0), 1e-9)
}
