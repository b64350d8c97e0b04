package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vrp-screener/internal/backtest"
	"vrp-screener/internal/config"
	apperrors "vrp-screener/internal/errors"
)

func newWalkForwardCmd(app *App) *cobra.Command {
	var (
		startFlag string
		endFlag   string
		topKs     []int
	)

	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Walk-forward validation of the backtest configuration",
		Long: `Rolls the configured train/test windows across the date range. In each
window every candidate configuration is fitted on the training range, the
best by Sharpe is evaluated once on the test range, and only out-of-sample
results are aggregated. Candidate configurations are the configured
backtest section with each --top-k value applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return apperrors.ErrDatabaseError
			}

			start, end, err := parseDateRange(startFlag, endFlag)
			if err != nil {
				return err
			}

			candidates := buildCandidates(app.Config.Backtest, topKs)

			engine := backtest.NewEngine(app.Store, app.Logger)
			result, err := engine.WalkForward(cmd.Context(), candidates, app.Config.WalkForward, start, end)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			printWalkForwardResult(output, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endFlag, "end", "", "end date, YYYY-MM-DD (required)")
	cmd.Flags().IntSliceVar(&topKs, "top-k", nil, "candidate top-K values (default: configured value)")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

// buildCandidates derives one candidate configuration per top-K value. With
// no values given, the configured backtest section is the only candidate.
func buildCandidates(base config.BacktestConfig, topKs []int) []config.BacktestConfig {
	if len(topKs) == 0 {
		return []config.BacktestConfig{base}
	}
	candidates := make([]config.BacktestConfig, 0, len(topKs))
	for _, k := range topKs {
		c := base
		c.TopK = k
		c.Name = fmt.Sprintf("%s-top%d", base.Name, k)
		candidates = append(candidates, c)
	}
	return candidates
}

func printWalkForwardResult(output *Output, result *backtest.WalkForwardResult) {
	output.Bold("Walk-forward validation")
	output.Printf("Windows: %d   OOS trades: %d\n", len(result.Windows), result.TestTrades)

	if len(result.Windows) == 0 {
		output.Warning("Date range too short for a single train/test window")
		return
	}

	output.Printf("OOS win rate: %.1f%%   OOS P&L: %s   Avg test Sharpe: %.2f\n",
		result.TestWinRate*100, output.FormatPercent(result.TestPnLPct), result.AvgTestSharpe)
	output.Println()

	table := NewTable(output, "TRAIN", "TEST", "CONFIG", "TRAIN SHARPE", "TEST TRADES", "TEST P&L")
	for _, w := range result.Windows {
		table.AddRow(
			fmt.Sprintf("%s..%s", w.Window.TrainStart.Format(dateLayout), w.Window.TrainEnd.Format(dateLayout)),
			fmt.Sprintf("%s..%s", w.Window.TestStart.Format(dateLayout), w.Window.TestEnd.Format(dateLayout)),
			w.BestConfig,
			fmt.Sprintf("%.2f", w.TrainSharpe),
			fmt.Sprintf("%d", w.TestResult.SelectedTrades),
			output.FormatPercent(w.TestResult.TotalPnLPct),
		)
	}
	table.Render()
}
