package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vrp-screener/internal/models"
)

// SQLiteStore implements MoveStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based move store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Realized earnings moves, one row per ticker and announcement
	CREATE TABLE IF NOT EXISTS earnings_moves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		earnings_date DATETIME NOT NULL,
		move_pct REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(ticker, earnings_date)
	);
	CREATE INDEX IF NOT EXISTS idx_moves_ticker_date ON earnings_moves(ticker, earnings_date);
	CREATE INDEX IF NOT EXISTS idx_moves_date ON earnings_moves(earnings_date);

	-- Completed backtest runs
	CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id TEXT PRIMARY KEY,
		config_name TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		opportunities INTEGER NOT NULL,
		selected_trades INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		total_pnl_pct REAL NOT NULL,
		avg_pnl_pct REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		kelly_fraction REAL,
		total_capital REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-event trades inside a run
	CREATE TABLE IF NOT EXISTS backtest_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		earnings_date DATETIME NOT NULL,
		composite_score REAL NOT NULL,
		rank INTEGER NOT NULL,
		selected INTEGER NOT NULL,
		avg_historical_move REAL,
		consistency REAL,
		historical_std REAL,
		actual_move REAL,
		simulated_pnl_pct REAL,
		simulated_pnl_usd REAL,
		config_name TEXT,
		FOREIGN KEY (run_id) REFERENCES backtest_runs(run_id)
	);
	CREATE INDEX IF NOT EXISTS idx_bt_trades_run ON backtest_trades(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveMove upserts one realized earnings move.
func (s *SQLiteStore) SaveMove(ctx context.Context, move HistoricalMove) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO earnings_moves (ticker, earnings_date, move_pct)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, earnings_date) DO UPDATE SET move_pct = excluded.move_pct`,
		move.Ticker, move.EarningsDate.UTC(), move.MovePct)
	if err != nil {
		return fmt.Errorf("saving move: %w", err)
	}
	return nil
}

// HistoricalMoves returns up to limit moves strictly before the given
// date, most recent first.
func (s *SQLiteStore) HistoricalMoves(ctx context.Context, ticker string, before time.Time, limit int) ([]HistoricalMove, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, earnings_date, move_pct
		FROM earnings_moves
		WHERE ticker = ? AND earnings_date < ?
		ORDER BY earnings_date DESC
		LIMIT ?`,
		ticker, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying moves: %w", err)
	}
	defer rows.Close()

	var moves []HistoricalMove
	for rows.Next() {
		var m HistoricalMove
		if err := rows.Scan(&m.Ticker, &m.EarningsDate, &m.MovePct); err != nil {
			return nil, fmt.Errorf("scanning move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// EarningsEvents returns all events in [start, end] ordered by date.
func (s *SQLiteStore) EarningsEvents(ctx context.Context, start, end time.Time) ([]EarningsEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, earnings_date, move_pct
		FROM earnings_moves
		WHERE earnings_date >= ? AND earnings_date <= ?
		ORDER BY earnings_date ASC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []EarningsEvent
	for rows.Next() {
		var e EarningsEvent
		if err := rows.Scan(&e.Ticker, &e.EarningsDate, &e.ActualMovePct); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveBacktestResult persists a run and its trades.
func (s *SQLiteStore) SaveBacktestResult(ctx context.Context, result *models.BacktestResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	totalCapital, _ := result.TotalCapital.Float64()
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO backtest_runs
		(run_id, config_name, start_date, end_date, opportunities, selected_trades,
		 win_rate, total_pnl_pct, avg_pnl_pct, sharpe_ratio, max_drawdown,
		 kelly_fraction, total_capital)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.ConfigName, result.StartDate.UTC(), result.EndDate.UTC(),
		result.Opportunities, result.SelectedTrades,
		result.WinRate, result.TotalPnLPct, result.AvgPnLPct, result.SharpeRatio,
		result.MaxDrawdown, result.KellyFraction, totalCapital)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for _, t := range result.Trades {
		pnlUSD, _ := t.SimulatedPnLUSD.Float64()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO backtest_trades
			(run_id, ticker, earnings_date, composite_score, rank, selected,
			 avg_historical_move, consistency, historical_std, actual_move,
			 simulated_pnl_pct, simulated_pnl_usd, config_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, t.Ticker, t.EarningsDate.UTC(), t.CompositeScore, t.Rank,
			t.Selected, t.AvgHistoricalMove, t.Consistency, t.HistoricalStd,
			t.ActualMove, t.SimulatedPnLPct, pnlUSD, t.ConfigName)
		if err != nil {
			return fmt.Errorf("saving trade: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
