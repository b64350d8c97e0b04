// Package backtest replays historical earnings events through the scoring
// model and validates configuration choices out-of-sample.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"vrp-screener/internal/config"
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/logging"
	"vrp-screener/internal/models"
	"vrp-screener/internal/scoring"
	"vrp-screener/internal/store"
)

// Engine replays earnings events against a scoring configuration.
type Engine struct {
	store  store.MoveStore
	logger zerolog.Logger
}

// NewEngine creates a backtest engine over the given move store.
func NewEngine(moveStore store.MoveStore, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  moveStore,
		logger: logger,
	}
}

// Run replays all earnings events in [start, end] under the given
// configuration. Events without history are skipped, never fatal; a run
// that selects zero trades returns a zeroed result rather than an error.
func (e *Engine) Run(ctx context.Context, cfg config.BacktestConfig, start, end time.Time) (*models.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	events, err := e.store.EarningsEvents(ctx, start, end)
	if err != nil {
		return nil, apperrors.Wrap(err, "loading earnings events")
	}

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	log := logging.WithRunID(e.logger, runID)
	ctx = logging.WithLogger(ctx, log)

	var trades []models.BacktestTrade
	for _, event := range events {
		trade, err := e.scoreEvent(ctx, cfg, event)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNoHistoricalData) {
				log.Debug().Str("ticker", event.Ticker).Time("date", event.EarningsDate).
					Msg("Skipping event without history")
				continue
			}
			return nil, err
		}
		trade.RunID = runID
		trade.ConfigName = cfg.Name
		trades = append(trades, *trade)
	}

	// Rank the whole window and mark the selection.
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].CompositeScore > trades[j].CompositeScore
	})
	for i := range trades {
		trades[i].Rank = i + 1
		trades[i].Selected = i < cfg.TopK && trades[i].CompositeScore >= cfg.MinScore
	}

	// Simulate P&L for the selected trades.
	for i := range trades {
		if !trades[i].Selected {
			continue
		}
		trades[i].SimulatedPnLPct = e.simulatePnL(cfg, &trades[i])
	}

	result := e.aggregate(cfg, runID, start, end, trades)
	logging.LogBacktestRun(log, runID, cfg.Name, result.SelectedTrades, result.WinRate, result.SharpeRatio)
	return result, nil
}

// scoreEvent scores one earnings event using only moves strictly before
// its date.
func (e *Engine) scoreEvent(ctx context.Context, cfg config.BacktestConfig, event store.EarningsEvent) (*models.BacktestTrade, error) {
	moves, err := e.store.HistoricalMoves(ctx, event.Ticker, event.EarningsDate, cfg.NQuarters)
	if err != nil {
		return nil, apperrors.NewDataError("moves", event.Ticker, "reading history", err)
	}
	if len(moves) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNoHistoricalData, "%s %s", event.Ticker, event.EarningsDate.Format("2006-01-02"))
	}

	values := make([]float64, len(moves))
	for i, m := range moves {
		values[i] = math.Abs(m.MovePct)
	}
	avg := mean(values)
	std := stdev(values, avg)

	consistency := consistencyScore(values, avg, std)
	implied := avg * cfg.IVInflation
	vrpRatio := safeRatio(implied, avg)

	composite := compositeScore(cfg.Weights, consistency, vrpRatio)
	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("ticker", event.Ticker).
		Float64("score", composite).
		Float64("consistency", consistency).
		Msg("Event scored")

	return &models.BacktestTrade{
		Ticker:            event.Ticker,
		EarningsDate:      event.EarningsDate,
		CompositeScore:    composite,
		AvgHistoricalMove: avg,
		Consistency:       consistency,
		HistoricalStd:     std,
		ActualMove:        math.Abs(event.ActualMovePct),
	}, nil
}

// consistencyScore maps the coefficient of variation of historical moves
// to (0, 1]. A single move gives no variance estimate, so it earns the
// soft value 0.6; zero moves would earn 0.5, though callers skip those
// events before getting here.
func consistencyScore(values []float64, avg, std float64) float64 {
	switch {
	case len(values) == 0:
		return 0.5
	case len(values) == 1:
		return 0.6
	}
	if avg <= 0 {
		return 0.5
	}
	cv := std / avg
	return 1 / (1 + cv)
}

// compositeScore applies the scorer's no-greeks weight model to the
// simulated inputs: consistency stands in for POP, liquidity is unknown
// (assume best), and the short premium structure's reward/risk is taken at
// half-spread collection ratio.
func compositeScore(w config.ScoringWeights, consistency, vrpRatio float64) float64 {
	pop := consistency

	popScore := math.Min(pop/w.TargetPOP, 1) * w.POPWeightNoGreeks
	liqScore := w.LiquidityWeightNoGreeks
	vrpScore := math.Min(vrpRatio/w.TargetVRP, 1) * w.VRPWeightNoGreeks
	kellyScore := scoring.KellyEdgeScore(pop, 0.5, w.TargetEdge, w.KellyWeightNoGreeks)

	score := popScore + liqScore + vrpScore + kellyScore
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// simulatePnL models the selected event as a short-straddle-like position,
// all in percent of stock price. Premium collected is half the implied
// move less slippage; exit cost is the overshoot beyond the implied move
// plus residual IV and slippage; commission is normalized to the
// configured reference stock price.
func (e *Engine) simulatePnL(cfg config.BacktestConfig, trade *models.BacktestTrade) float64 {
	implied := trade.AvgHistoricalMove * cfg.IVInflation

	premiumCollected := 0.5*implied - cfg.HalfSpreadSlippage
	exitCost := math.Max(0, trade.ActualMove-implied) +
		cfg.ResidualIVFactor*implied +
		cfg.HalfSpreadSlippage

	commissionPct := float64(cfg.CommissionContracts) * cfg.CommissionPerLot * 2 / cfg.CommissionRefPrice

	return premiumCollected - exitCost - commissionPct
}

// aggregate folds the trade list into run-level metrics.
func (e *Engine) aggregate(cfg config.BacktestConfig, runID string, start, end time.Time, trades []models.BacktestTrade) *models.BacktestResult {
	result := &models.BacktestResult{
		RunID:         runID,
		ConfigName:    cfg.Name,
		StartDate:     start,
		EndDate:       end,
		Opportunities: len(trades),
		Trades:        trades,
	}

	var pnls []float64
	var winnerScores, loserScores []float64
	for _, t := range trades {
		if !t.Selected {
			continue
		}
		result.SelectedTrades++
		pnls = append(pnls, t.SimulatedPnLPct)
		if t.SimulatedPnLPct > 0 {
			result.Winners++
			winnerScores = append(winnerScores, t.CompositeScore)
		} else {
			result.Losers++
			loserScores = append(loserScores, t.CompositeScore)
		}
	}

	if result.SelectedTrades == 0 {
		return result
	}

	result.WinRate = float64(result.Winners) / float64(result.SelectedTrades)
	result.TotalPnLPct = sum(pnls)
	result.AvgPnLPct = result.TotalPnLPct / float64(len(pnls))
	result.SharpeRatio = sharpe(pnls)
	result.AvgWinnerScore = mean(winnerScores)
	result.AvgLoserScore = mean(loserScores)

	if cfg.SizingEnabled {
		applySizing(cfg, result)
	} else {
		result.MaxDrawdown = maxDrawdownPct(trades)
	}

	return result
}

// sharpe is mean over standard deviation of per-trade returns. It is 0,
// never NaN or Inf, with fewer than two trades or zero variance.
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	m := mean(pnls)
	s := stdev(pnls, m)
	if s == 0 {
		return 0
	}
	return m / s
}

// maxDrawdownPct tracks the running peak-to-trough decline on a notional
// equity curve starting at 100. The curve is folded in earnings-date order;
// trades arrive here ranked by score, which is meaningless as a time axis.
func maxDrawdownPct(trades []models.BacktestTrade) float64 {
	var selected []models.BacktestTrade
	for _, t := range trades {
		if t.Selected {
			selected = append(selected, t)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].EarningsDate.Before(selected[j].EarningsDate)
	})

	equity := 100.0
	peak := equity
	maxDD := 0.0
	for _, t := range selected {
		equity += t.SimulatedPnLPct
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func stdev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
