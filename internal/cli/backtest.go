package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vrp-screener/internal/backtest"
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/models"
	"vrp-screener/internal/store"
	"vrp-screener/pkg/utils"
)

const dateLayout = "2006-01-02"

func newBacktestCmd(app *App) *cobra.Command {
	var (
		startFlag string
		endFlag   string
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical earnings events through the scoring model",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}

			start, end, err := parseDateRange(startFlag, endFlag)
			if err != nil {
				return err
			}

			engine := backtest.NewEngine(app.Store, app.Logger)
			result, err := engine.Run(cmd.Context(), app.Config.Backtest, start, end)
			if err != nil {
				return err
			}

			if save {
				if err := app.Store.SaveBacktestResult(cmd.Context(), result); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			printBacktestResult(output, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endFlag, "end", "", "end date, YYYY-MM-DD (required)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the run to the database")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	cmd.AddCommand(newImportCmd(app))

	return cmd
}

// moveRecord is the JSON wire form for imported earnings moves.
type moveRecord struct {
	Ticker       string  `json:"ticker"`
	EarningsDate string  `json:"earnings_date"` // YYYY-MM-DD
	MovePct      float64 `json:"move_pct"`
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <moves.json>",
		Short: "Import realized earnings moves into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return apperrors.NewDataError("moves", args[0], "reading file", err)
			}
			var records []moveRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return apperrors.NewDataError("moves", args[0], "parsing file", err)
			}

			for _, r := range records {
				date, err := time.Parse(dateLayout, r.EarningsDate)
				if err != nil {
					return apperrors.NewDataError("moves", r.Ticker, "parsing earnings date", err)
				}
				move := store.HistoricalMove{
					Ticker:       r.Ticker,
					EarningsDate: date,
					MovePct:      r.MovePct,
				}
				if err := app.Store.SaveMove(cmd.Context(), move); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"imported": len(records)})
			}
			output.Success("Imported %d moves", len(records))
			return nil
		},
	}
}

func parseDateRange(startFlag, endFlag string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startFlag)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewConfigError("start", startFlag, "must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, endFlag)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewConfigError("end", endFlag, "must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperrors.NewConfigError("end", endFlag, "must not precede start")
	}
	return start, end, nil
}

func printBacktestResult(output *Output, result *models.BacktestResult) {
	output.Bold("Backtest %s (%s)", result.RunID, result.ConfigName)
	output.Printf("Range: %s to %s\n",
		result.StartDate.Format(dateLayout), result.EndDate.Format(dateLayout))
	output.Println()

	output.Printf("Opportunities: %s   Selected: %d   Winners: %d   Losers: %d\n",
		utils.FormatQuantity(int64(result.Opportunities)), result.SelectedTrades, result.Winners, result.Losers)
	output.Printf("Win rate:  %.1f%%\n", result.WinRate*100)
	output.Printf("Total P&L: %s   Avg: %s\n",
		output.FormatPercent(result.TotalPnLPct), output.FormatPercent(result.AvgPnLPct))
	output.Printf("Sharpe:    %.2f   Max drawdown: %.1f%%\n",
		result.SharpeRatio, result.MaxDrawdown*100)

	if !result.TotalCapital.IsZero() {
		totalUSD, _ := result.TotalPnLUSD.Float64()
		output.Printf("Kelly fraction: %.2f   P&L: %s\n",
			result.KellyFraction, output.FormatPnL(totalUSD))
	}

	if result.SelectedTrades == 0 {
		output.Println()
		output.Warning("No trades selected in this range")
		return
	}

	output.Println()
	table := NewTable(output, "RANK", "TICKER", "DATE", "SCORE", "CONSIST", "AVG MOVE", "ACTUAL", "P&L")
	for _, t := range result.Trades {
		if !t.Selected {
			continue
		}
		table.AddRow(
			fmt.Sprintf("%d", t.Rank),
			t.Ticker,
			t.EarningsDate.Format(dateLayout),
			fmt.Sprintf("%.1f", t.CompositeScore),
			fmt.Sprintf("%.2f", t.Consistency),
			utils.FormatPercent(t.AvgHistoricalMove),
			utils.FormatPercent(t.ActualMove),
			output.FormatPercent(t.SimulatedPnLPct),
		)
	}
	table.Render()
}
