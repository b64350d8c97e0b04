package backtest

import (
	"math"
	"sort"

	"vrp-screener/internal/config"
	"vrp-screener/internal/models"
)

// kellyFraction computes the Kelly bet fraction f = (p*b - q) / b from the
// realized win rate and win/loss ratio, clamped to the configured band. A
// run with no losers has no loss estimate, so it sits at the upper clamp.
func kellyFraction(cfg config.BacktestConfig, winRate, avgWin, avgLoss float64) float64 {
	if avgLoss <= 0 {
		return cfg.KellyMax
	}
	b := avgWin / avgLoss
	if b <= 0 {
		return cfg.KellyMin
	}
	f := (winRate*b - (1 - winRate)) / b
	return clamp(f, cfg.KellyMin, cfg.KellyMax)
}

// applySizing converts percent returns to dollars. Hybrid mode allocates the
// Kelly fraction of capital per trade, scaled by the trade's composite score
// relative to the selection average; equal mode splits capital evenly.
func applySizing(cfg config.BacktestConfig, result *models.BacktestResult) {
	var wins, losses []float64
	var scoreSum float64
	selected := make([]int, 0, result.SelectedTrades)
	for i := range result.Trades {
		t := &result.Trades[i]
		if !t.Selected {
			continue
		}
		selected = append(selected, i)
		scoreSum += t.CompositeScore
		if t.SimulatedPnLPct > 0 {
			wins = append(wins, t.SimulatedPnLPct)
		} else {
			losses = append(losses, math.Abs(t.SimulatedPnLPct))
		}
	}
	if len(selected) == 0 {
		return
	}

	f := kellyFraction(cfg, result.WinRate, mean(wins), mean(losses))
	avgScore := scoreSum / float64(len(selected))

	// The equity curve only makes sense in earnings-date order; the trade
	// slice arrives ranked by score.
	sort.Slice(selected, func(a, b int) bool {
		return result.Trades[selected[a]].EarningsDate.Before(result.Trades[selected[b]].EarningsDate)
	})

	result.TotalCapital = models.MoneyFromFloat(cfg.TotalCapital)
	result.KellyFraction = f

	equity := cfg.TotalCapital
	peak := equity
	maxDD := 0.0
	totalUSD := 0.0
	for _, i := range selected {
		t := &result.Trades[i]

		var size float64
		switch cfg.SizingMode {
		case config.SizingEqual:
			size = cfg.TotalCapital / float64(len(selected))
		default:
			size = cfg.TotalCapital * f
			if avgScore > 0 {
				size *= t.CompositeScore / avgScore
			}
		}

		pnl := size * t.SimulatedPnLPct / 100
		t.SimulatedPnLUSD = models.MoneyFromFloat(pnl)
		totalUSD += pnl

		equity += pnl
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	result.TotalPnLUSD = models.MoneyFromFloat(totalUSD)
	result.MaxDrawdown = maxDD
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
