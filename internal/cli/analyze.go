package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/models"
	"vrp-screener/internal/strategy"
	"vrp-screener/pkg/utils"
)

// chainSnapshot is the JSON wire form of an option chain. Strikes are
// listed, not keyed, because JSON objects cannot carry numeric keys.
type chainSnapshot struct {
	Ticker     string          `json:"ticker"`
	Expiration string          `json:"expiration"` // YYYY-MM-DD
	StockPrice float64         `json:"stock_price"`
	Calls      []quoteSnapshot `json:"calls"`
	Puts       []quoteSnapshot `json:"puts"`
}

type quoteSnapshot struct {
	Strike       float64         `json:"strike"`
	Bid          float64         `json:"bid"`
	Ask          float64         `json:"ask"`
	IV           float64         `json:"iv"`
	OpenInterest int             `json:"open_interest"`
	Volume       int             `json:"volume"`
	Greeks       *greeksSnapshot `json:"greeks,omitempty"`
}

type greeksSnapshot struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var (
		impliedMove    float64
		historicalMove float64
		biasFlag       string
		skewSlope      float64
	)

	cmd := &cobra.Command{
		Use:   "analyze <chain.json>",
		Short: "Build and rank strategies from a chain snapshot",
		Long: `Reads an option chain snapshot from a JSON file, combines it with the
implied and historical move inputs, and prints the ranked strategy
recommendation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			chain, err := loadChainSnapshot(args[0])
			if err != nil {
				return err
			}

			if historicalMove <= 0 {
				return apperrors.NewConfigError("historical-move", historicalMove, "must be positive")
			}
			ratio := impliedMove / historicalMove
			vrp := models.VRPResult{
				ImpliedMovePct:        models.Percentage(impliedMove),
				HistoricalMeanMovePct: models.Percentage(historicalMove),
				Ratio:                 ratio,
				Tier:                  tierForRatio(ratio),
			}

			var skew *models.SkewResult
			if biasFlag != "" {
				skew = &models.SkewResult{
					Bias:  models.Bias(biasFlag),
					Slope: skewSlope,
				}
			}

			gen, err := strategy.NewGenerator(
				app.Config.Strategy,
				app.Config.Scoring,
				strategy.NewOISpreadClassifier(),
				app.Logger,
			)
			if err != nil {
				return err
			}

			rec, err := gen.Generate(chain.Ticker, chain, vrp, skew)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rec)
			}
			printRecommendation(output, rec)
			return nil
		},
	}

	cmd.Flags().Float64Var(&impliedMove, "implied-move", 0, "implied move in percent (required)")
	cmd.Flags().Float64Var(&historicalMove, "historical-move", 0, "historical mean move in percent (required)")
	cmd.Flags().StringVar(&biasFlag, "bias", "", "directional bias from skew (e.g. BULLISH, STRONG_BEARISH)")
	cmd.Flags().Float64Var(&skewSlope, "skew-slope", 0, "skew slope, informational only")
	cmd.MarkFlagRequired("implied-move")
	cmd.MarkFlagRequired("historical-move")

	return cmd
}

func loadChainSnapshot(path string) (*models.OptionChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDataError("chain", path, "reading snapshot", err)
	}
	var snap chainSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.NewDataError("chain", path, "parsing snapshot", err)
	}
	expiration, err := time.Parse("2006-01-02", snap.Expiration)
	if err != nil {
		return nil, apperrors.NewDataError("chain", path, "parsing expiration", err)
	}

	chain := &models.OptionChain{
		Ticker:     snap.Ticker,
		Expiration: expiration,
		StockPrice: models.MoneyFromFloat(snap.StockPrice),
		Calls:      make(map[models.Strike]models.OptionQuote, len(snap.Calls)),
		Puts:       make(map[models.Strike]models.OptionQuote, len(snap.Puts)),
	}
	for _, q := range snap.Calls {
		chain.Calls[models.Strike(q.Strike)] = q.toQuote()
	}
	for _, q := range snap.Puts {
		chain.Puts[models.Strike(q.Strike)] = q.toQuote()
	}
	return chain, nil
}

func (q quoteSnapshot) toQuote() models.OptionQuote {
	quote := models.OptionQuote{
		Bid:          models.MoneyFromFloat(q.Bid),
		Ask:          models.MoneyFromFloat(q.Ask),
		IV:           models.Percentage(q.IV),
		OpenInterest: q.OpenInterest,
		Volume:       q.Volume,
	}
	if q.Greeks != nil {
		quote.Greeks = &models.Greeks{
			Delta: q.Greeks.Delta,
			Gamma: q.Greeks.Gamma,
			Theta: q.Greeks.Theta,
			Vega:  q.Greeks.Vega,
		}
	}
	return quote
}

// tierForRatio grades the VRP ratio for display. The generator uses the
// raw ratio, not the tier.
func tierForRatio(ratio float64) models.VRPTier {
	switch {
	case ratio >= 2.0:
		return models.VRPExcellent
	case ratio >= 1.5:
		return models.VRPGood
	case ratio >= 1.2:
		return models.VRPMarginal
	default:
		return models.VRPSkip
	}
}

func printRecommendation(output *Output, rec *models.StrategyRecommendation) {
	price, _ := rec.StockPrice.Float64()

	output.Bold("%s  %s  %s", rec.Ticker, utils.FormatUSD(price), rec.Expiration.Format("2006-01-02"))
	output.Printf("Implied move: %.1f%%   VRP: %s (%s)   Bias: %s\n",
		float64(rec.ImpliedMovePct), utils.FormatRatio(rec.VRPRatio),
		output.Tier(string(tierForRatio(rec.VRPRatio))), rec.Bias)
	output.Println()

	table := NewTable(output, "#", "STRATEGY", "SCORE", "POP", "CREDIT", "MAX LOSS", "R/R", "CONTRACTS", "CAPITAL")
	for i, s := range rec.Strategies {
		credit, _ := s.NetCredit.Float64()
		maxLoss, _ := s.MaxLoss.Float64()
		capital, _ := s.CapitalRequired.Float64()
		marker := fmt.Sprintf("%d", i+1)
		if i == rec.RecommendedIndex {
			marker = output.Green(marker + "*")
		}
		table.AddRow(
			marker,
			string(s.Type),
			fmt.Sprintf("%.1f", s.OverallScore),
			fmt.Sprintf("%.0f%%", s.POP*100),
			utils.FormatUSD(credit),
			utils.FormatUSD(maxLoss),
			fmt.Sprintf("%.2f", s.RewardRisk),
			fmt.Sprintf("%d", s.Contracts),
			utils.FormatUSD(capital),
		)
	}
	table.Render()
	output.Println()

	top := rec.Recommended()
	output.Bold("Legs (%s)", top.Type)
	for _, leg := range top.Legs {
		premium, _ := leg.Premium.Float64()
		output.Printf("  %-4s %-4s %s @ %s\n",
			leg.Action, leg.Type, utils.FormatStrike(float64(leg.Strike)), utils.FormatUSD(premium))
	}
	output.Println()
	output.Dim("%s", rec.Rationale)
}
