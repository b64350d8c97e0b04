package models

import "time"

// BacktestTrade is one scored earnings event inside a backtest run.
// SimulatedPnL fields are only meaningful when Selected is true.
type BacktestTrade struct {
	Ticker            string
	EarningsDate      time.Time
	CompositeScore    float64
	Rank              int
	Selected          bool
	AvgHistoricalMove float64
	Consistency       float64
	HistoricalStd     float64
	ActualMove        float64
	SimulatedPnLPct   float64
	SimulatedPnLUSD   Money // zero unless position sizing is enabled
	RunID             string
	ConfigName        string
}

// BacktestResult aggregates one backtest run. All rate and ratio fields are
// zero, not NaN, when no trades were selected.
type BacktestResult struct {
	RunID      string
	ConfigName string
	StartDate  time.Time
	EndDate    time.Time

	Opportunities  int
	SelectedTrades int
	Winners        int
	Losers         int

	WinRate     float64
	TotalPnLPct float64
	AvgPnLPct   float64
	SharpeRatio float64
	MaxDrawdown float64

	AvgWinnerScore float64
	AvgLoserScore  float64

	Trades []BacktestTrade

	// Position sizing, populated only when sizing is enabled.
	TotalCapital  Money
	KellyFraction float64
	TotalPnLUSD   Money
}
