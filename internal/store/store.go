// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"vrp-screener/internal/models"
)

// EarningsEvent is one historical earnings announcement with its realized
// post-announcement move.
type EarningsEvent struct {
	Ticker        string
	EarningsDate  time.Time
	ActualMovePct float64 // absolute percent move on the announcement
}

// HistoricalMove is one realized earnings move used as scoring history.
type HistoricalMove struct {
	Ticker       string
	EarningsDate time.Time
	MovePct      float64
}

// MoveStore defines the persistence interface consumed by the backtest
// engine and the CLI.
type MoveStore interface {
	// SaveMove upserts one realized earnings move.
	SaveMove(ctx context.Context, move HistoricalMove) error

	// HistoricalMoves returns up to limit moves for the ticker strictly
	// before the given date, most recent first. Strictness is what keeps
	// the backtest free of look-ahead.
	HistoricalMoves(ctx context.Context, ticker string, before time.Time, limit int) ([]HistoricalMove, error)

	// EarningsEvents returns all events in [start, end] ordered by date.
	EarningsEvents(ctx context.Context, start, end time.Time) ([]EarningsEvent, error)

	// SaveBacktestResult persists a completed run and its trades for
	// reporting.
	SaveBacktestResult(ctx context.Context, result *models.BacktestResult) error

	// Lifecycle
	Close() error
}
