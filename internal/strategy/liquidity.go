package strategy

import "vrp-screener/internal/models"

// OISpreadClassifier is a minimal LiquidityClassifier built on open
// interest and relative spread, used when no external classifier service
// is wired in.
type OISpreadClassifier struct {
	ExcellentOI        int
	WarningOI          int
	ExcellentSpreadPct models.Percentage
	WarningSpreadPct   models.Percentage
}

// NewOISpreadClassifier returns a classifier with conventional retail
// thresholds.
func NewOISpreadClassifier() *OISpreadClassifier {
	return &OISpreadClassifier{
		ExcellentOI:        100,
		WarningOI:          10,
		ExcellentSpreadPct: 10,
		WarningSpreadPct:   20,
	}
}

// Classify labels a quote's tradability tier.
func (c *OISpreadClassifier) Classify(q models.OptionQuote) models.LiquidityTier {
	if q.OpenInterest >= c.ExcellentOI && q.SpreadPct() <= c.ExcellentSpreadPct {
		return models.LiquidityExcellent
	}
	if q.OpenInterest >= c.WarningOI && q.SpreadPct() <= c.WarningSpreadPct {
		return models.LiquidityWarning
	}
	return models.LiquidityReject
}
