// Package scoring converts built strategies into composite 0-100 scores
// and ranks them.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"vrp-screener/internal/config"
	"vrp-screener/internal/models"
)

// Scorer scores strategies against a VRP context. It is a pure function of
// its inputs plus the weights it was constructed with, and is safe for
// concurrent use.
type Scorer struct {
	weights config.ScoringWeights
}

// NewScorer creates a scorer with the given weights. Weights are validated
// here, never per call.
func NewScorer(weights config.ScoringWeights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// NewDefaultScorer creates a scorer with the default weight model.
func NewDefaultScorer() *Scorer {
	s, err := NewScorer(config.DefaultScoringWeights())
	if err != nil {
		panic(err) // defaults are always valid
	}
	return s
}

// Breakdown is the scorer's verdict for one strategy.
type Breakdown struct {
	Overall       float64
	Profitability float64
	Risk          float64
	Rationale     string
}

// ScoredStrategy pairs an immutable strategy copy with its score. The input
// strategy is never mutated; callers read scores off the returned copy.
type ScoredStrategy struct {
	Strategy  models.Strategy
	Breakdown Breakdown
}

// Score scores one strategy. The returned copy has its score fields and
// rationale populated.
func (s *Scorer) Score(strat models.Strategy, vrp models.VRPResult, bias models.Bias) ScoredStrategy {
	hasGreeks := strat.Greeks != nil

	popW, liqW, vrpW, kellyW, greeksW := s.modelWeights(hasGreeks)

	popScore := s.popScore(strat.POP, popW)
	liqScore := s.liquidityScore(strat.LiquidityTier, liqW)
	vrpScore := s.vrpScore(vrp.Ratio, vrpW)
	kellyScore := KellyEdgeScore(strat.POP, strat.RewardRisk, s.weights.TargetEdge, kellyW)

	var greeksScore float64
	if hasGreeks {
		greeksScore = s.greeksScore(strat.Greeks, greeksW)
	}

	base := popScore + liqScore + vrpScore + kellyScore + greeksScore

	mult := 1.0
	if len(strat.Breakevens) >= 2 {
		mult = ProfitZoneMultiplier(zoneToMoveRatio(strat, vrp))
	}

	overall := clamp(base*mult+s.alignment(strat.Type, bias), 0, 100)

	profitability := normalize(popScore+vrpScore+kellyScore, popW+vrpW+kellyW)
	risk := normalize(liqScore+greeksScore, liqW+greeksW)

	out := strat
	out.OverallScore = overall
	out.ProfitabilityScore = profitability
	out.RiskScore = risk
	out.Rationale = s.rationale(strat, vrp, kellyScore > 0)

	return ScoredStrategy{
		Strategy: out,
		Breakdown: Breakdown{
			Overall:       overall,
			Profitability: profitability,
			Risk:          risk,
			Rationale:     out.Rationale,
		},
	}
}

// Rank sorts scored strategies descending by overall score. The sort is
// stable: ties keep their generation order.
func Rank(scored []ScoredStrategy) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Breakdown.Overall > scored[j].Breakdown.Overall
	})
}

func (s *Scorer) modelWeights(hasGreeks bool) (pop, liq, vrp, kelly, greeks float64) {
	w := s.weights
	if hasGreeks {
		return w.POPWeight, w.LiquidityWeight, w.VRPWeight, w.KellyWeight, w.GreeksWeight
	}
	return w.POPWeightNoGreeks, w.LiquidityWeightNoGreeks, w.VRPWeightNoGreeks, w.KellyWeightNoGreeks, 0
}

func (s *Scorer) popScore(pop, weight float64) float64 {
	ratio := pop / s.weights.TargetPOP
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio * weight
}

// liquidityScore gives full weight for EXCELLENT, half for WARNING, zero
// for REJECT. An unknown tier assumes the best.
func (s *Scorer) liquidityScore(tier *models.LiquidityTier, weight float64) float64 {
	if tier == nil {
		return weight
	}
	switch *tier {
	case models.LiquidityExcellent:
		return weight
	case models.LiquidityWarning:
		return weight * 0.5
	default:
		return 0
	}
}

func (s *Scorer) vrpScore(ratio, weight float64) float64 {
	r := ratio / s.weights.TargetVRP
	if r > 1 {
		r = 1
	}
	if r < 0 {
		r = 0
	}
	return r * weight
}

// KellyEdge returns the expected-value edge of a trade:
// pop*rr - (1-pop). A non-positive edge means a negative-expectation trade.
func KellyEdge(pop, rewardRisk float64) float64 {
	return pop*rewardRisk - (1 - pop)
}

// KellyEdgeScore converts the Kelly edge into a weighted sub-score. The
// score is exactly zero whenever the edge is non-positive, so a
// negative-EV trade never earns points from its reward/risk ratio.
func KellyEdgeScore(pop, rewardRisk, targetEdge, weight float64) float64 {
	edge := KellyEdge(pop, rewardRisk)
	if edge <= 0 {
		return 0
	}
	r := edge / targetEdge
	if r > 1 {
		r = 1
	}
	return r * weight
}

// greeksScore awards half weight for favorable theta and half for
// favorable vega. Positive theta (collecting time decay) and negative vega
// (short volatility into the IV crush) are favorable; an unfavorable sign
// earns zero for that half.
func (s *Scorer) greeksScore(g *models.PositionGreeks, weight float64) float64 {
	half := weight / 2
	var score float64
	if g.Theta > 0 {
		r := g.Theta / s.weights.TargetTheta
		if r > 1 {
			r = 1
		}
		score += r * half
	}
	if g.Vega < 0 {
		r := -g.Vega / s.weights.TargetVega
		if r > 1 {
			r = 1
		}
		score += r * half
	}
	return score
}

// ProfitZoneMultiplier scales the composite score by how much of the
// expected two-sided move the strategy's profit zone covers. Monotone
// non-decreasing in the ratio; always within [0.3, 1.0]. Strategies with a
// single breakeven are exempt (callers apply 1.0) since their risk is
// one-sided.
func ProfitZoneMultiplier(zoneToMoveRatio float64) float64 {
	switch {
	case zoneToMoveRatio >= 1.0:
		return 1.0
	case zoneToMoveRatio >= 0.70:
		return 0.9 + (zoneToMoveRatio-0.70)/0.30*0.1
	case zoneToMoveRatio >= 0.40:
		return 0.7 + (zoneToMoveRatio-0.40)/0.30*0.2
	case zoneToMoveRatio >= 0.20:
		return 0.5 + (zoneToMoveRatio-0.20)/0.20*0.2
	default:
		return 0.3
	}
}

// zoneToMoveRatio compares the breakeven-defined profit zone width (as a
// percent of stock price) against the total two-sided expected range. The
// breakeven midpoint only stands in for the stock price when the strategy
// carries no underlying price, which matters for off-center structures.
func zoneToMoveRatio(strat models.Strategy, vrp models.VRPResult) float64 {
	if len(strat.Breakevens) < 2 || vrp.ImpliedMovePct <= 0 {
		return 1.0
	}
	lo, hi := strat.Breakevens[0], strat.Breakevens[1]
	if hi.LessThan(lo) {
		lo, hi = hi, lo
	}
	ref := strat.UnderlyingPrice
	if ref.IsZero() {
		ref = lo.Add(hi).Div(models.MoneyFromFloat(2))
	}
	if ref.IsZero() {
		return 1.0
	}
	zonePct, _ := hi.Sub(lo).Div(ref).Mul(models.MoneyFromFloat(100)).Float64()
	return zonePct / (2 * float64(vrp.ImpliedMovePct))
}

// alignment applies the directional adjustment: bias-aligned credit spreads
// earn points scaled by bias strength, counter-trend spreads lose a fixed
// penalty, and neutral setups are untouched.
func (s *Scorer) alignment(t models.StrategyType, bias models.Bias) float64 {
	if t != models.BullPutSpread && t != models.BearCallSpread {
		return 0
	}
	if bias.Strength() == models.StrengthNone {
		return 0
	}

	aligned := (bias.IsBullish() && t == models.BullPutSpread) ||
		(bias.IsBearish() && t == models.BearCallSpread)
	if !aligned {
		return -s.weights.CounterTrend
	}

	switch bias.Strength() {
	case models.StrengthStrong:
		return s.weights.AlignStrong
	case models.StrengthModerate:
		return s.weights.AlignModerate
	default:
		return s.weights.AlignWeak
	}
}

func (s *Scorer) rationale(strat models.Strategy, vrp models.VRPResult, positiveEdge bool) string {
	var parts []string

	switch vrp.Tier {
	case models.VRPExcellent:
		parts = append(parts, fmt.Sprintf("excellent VRP %.2fx", vrp.Ratio))
	case models.VRPGood:
		parts = append(parts, fmt.Sprintf("good VRP %.2fx", vrp.Ratio))
	case models.VRPMarginal:
		parts = append(parts, fmt.Sprintf("marginal VRP %.2fx", vrp.Ratio))
	}

	parts = append(parts, fmt.Sprintf("POP %.0f%%", strat.POP*100))

	if positiveEdge {
		parts = append(parts, fmt.Sprintf("positive edge, R/R %.2f", strat.RewardRisk))
	} else {
		parts = append(parts, fmt.Sprintf("negative edge at R/R %.2f", strat.RewardRisk))
	}

	if strat.LiquidityTier != nil {
		switch *strat.LiquidityTier {
		case models.LiquidityWarning:
			parts = append(parts, "liquidity warning on short legs")
		case models.LiquidityReject:
			parts = append(parts, "short-leg liquidity rejected")
		}
	}

	if strat.Greeks != nil && strat.Greeks.Theta > 0 && strat.Greeks.Vega < 0 {
		parts = append(parts, "positive theta, short vega")
	}

	switch strat.Type {
	case models.IronButterfly:
		parts = append(parts, "tight profit zone centered at the money")
	case models.IronCondor:
		parts = append(parts, "two-sided defined risk")
	}

	return strings.Join(parts, "; ")
}

func normalize(score, totalWeight float64) float64 {
	if totalWeight <= 0 {
		return 0
	}
	return clamp(score/totalWeight*100, 0, 100)
}

// clamp restricts a value to the given range.
func clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
