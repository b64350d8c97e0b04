// Package strategy builds candidate multi-leg option structures from a
// quote chain and a VRP context, and ranks them through the scorer.
package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"vrp-screener/internal/config"
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/logging"
	"vrp-screener/internal/models"
	"vrp-screener/internal/scoring"
)

// ChainProvider supplies, for a ticker, the live quote chain for the
// front expiration. Market-data retrieval is an external collaborator;
// this package only consumes the interface.
type ChainProvider interface {
	Chain(ctx context.Context, ticker string) (*models.OptionChain, error)
}

// LiquidityClassifier labels a quote's tradability tier. The classifier is
// an external collaborator; a nil classifier leaves strategy tiers unset
// and the scorer assumes the best.
type LiquidityClassifier interface {
	Classify(q models.OptionQuote) models.LiquidityTier
}

// Generator builds and ranks candidate strategies.
type Generator struct {
	cfg        config.StrategyConfig
	scorer     *scoring.Scorer
	classifier LiquidityClassifier
	logger     zerolog.Logger
}

// NewGenerator creates a generator. Both config bundles are validated here;
// Generate never re-validates.
func NewGenerator(cfg config.StrategyConfig, weights config.ScoringWeights, classifier LiquidityClassifier, logger zerolog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(weights)
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:        cfg,
		scorer:     scorer,
		classifier: classifier,
		logger:     logger,
	}, nil
}

// Generate builds candidate strategies for the chain, scores them, and
// returns up to three ranked by overall score. A nil skew means neutral
// bias. Per-type construction failures are absorbed; the only hard error
// is an empty final list (ErrNoViableStrategy) on top of obviously
// unusable inputs.
func (g *Generator) Generate(ticker string, chain *models.OptionChain, vrp models.VRPResult, skew *models.SkewResult) (*models.StrategyRecommendation, error) {
	if chain == nil || (len(chain.Calls) == 0 && len(chain.Puts) == 0) {
		return nil, apperrors.Wrap(apperrors.ErrNoViableStrategy, "empty option chain")
	}

	bias := models.BiasNeutral
	if skew != nil {
		bias = skew.Bias
	}

	log := logging.WithTicker(g.logger, ticker)

	var candidates []models.Strategy
	for _, t := range selectTypes(vrp.Ratio, bias) {
		strat, err := g.build(t, chain, vrp)
		if err != nil {
			logging.LogSkip(log, ticker, string(t), err.Error())
			continue
		}
		g.finalize(strat, chain)
		candidates = append(candidates, *strat)
	}

	if len(candidates) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNoViableStrategy, "ticker %s", ticker)
	}

	scored := make([]scoring.ScoredStrategy, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, g.scorer.Score(c, vrp, bias))
	}
	scoring.Rank(scored)

	if len(scored) > 3 {
		scored = scored[:3]
	}

	strategies := make([]models.Strategy, len(scored))
	for i, sc := range scored {
		strategies[i] = sc.Strategy
	}

	top := strategies[0]
	logging.LogRecommendation(log, ticker, string(top.Type), top.OverallScore, len(strategies))

	return &models.StrategyRecommendation{
		Ticker:           ticker,
		Expiration:       chain.Expiration,
		StockPrice:       chain.StockPrice,
		ImpliedMovePct:   vrp.ImpliedMovePct,
		VRPRatio:         vrp.Ratio,
		Bias:             bias,
		Strategies:       strategies,
		RecommendedIndex: 0,
		Rationale: fmt.Sprintf("%s recommended (score %.1f) from %d candidate(s); %s",
			top.Type, top.OverallScore, len(strategies), top.Rationale),
	}, nil
}

// GenerateLive fetches the front-expiration chain from the provider and
// builds a recommendation from it. Provider failures surface as-is; they
// are never folded into ErrNoViableStrategy.
func (g *Generator) GenerateLive(ctx context.Context, provider ChainProvider, ticker string, vrp models.VRPResult, skew *models.SkewResult) (*models.StrategyRecommendation, error) {
	chain, err := provider.Chain(ctx, ticker)
	if err != nil {
		return nil, apperrors.Wrapf(err, "fetching chain for %s", ticker)
	}
	return g.Generate(ticker, chain, vrp, skew)
}

// selectTypes picks the 1-3 candidate strategy types from the VRP ratio
// breakpoints and the directional bias.
func selectTypes(ratio float64, bias models.Bias) []models.StrategyType {
	switch {
	case ratio >= 2.5 && bias.Strength() == models.StrengthNone:
		return []models.StrategyType{models.IronButterfly, models.IronCondor, models.BullPutSpread}
	case ratio >= 2.0:
		switch {
		case bias.IsBullish():
			return []models.StrategyType{models.BullPutSpread, models.IronCondor, models.IronButterfly}
		case bias.IsBearish():
			return []models.StrategyType{models.BearCallSpread, models.IronCondor, models.IronButterfly}
		default:
			return []models.StrategyType{models.IronCondor, models.IronButterfly, models.BullPutSpread}
		}
	case ratio >= 1.5:
		switch {
		case bias.IsBullish():
			return []models.StrategyType{models.BullPutSpread, models.IronCondor}
		case bias.IsBearish():
			return []models.StrategyType{models.BearCallSpread, models.IronCondor}
		default:
			return []models.StrategyType{models.IronCondor, models.BullPutSpread}
		}
	default:
		if bias.IsBearish() {
			return []models.StrategyType{models.BearCallSpread}
		}
		return []models.StrategyType{models.BullPutSpread}
	}
}

func (g *Generator) build(t models.StrategyType, chain *models.OptionChain, vrp models.VRPResult) (*models.Strategy, error) {
	switch t {
	case models.BullPutSpread:
		return g.buildVertical(chain, vrp, models.Put)
	case models.BearCallSpread:
		return g.buildVertical(chain, vrp, models.Call)
	case models.IronCondor:
		return g.buildCondor(chain, vrp)
	case models.IronButterfly:
		return g.buildButterfly(chain, vrp)
	default:
		return nil, apperrors.NewSkipError(string(t), "unknown strategy type", nil)
	}
}

// finalize fills in everything common to all structures: aggregated
// greeks, the short-leg liquidity tier, contract count, capital, and
// commission.
func (g *Generator) finalize(s *models.Strategy, chain *models.OptionChain) {
	s.UnderlyingPrice = chain.StockPrice
	s.Greeks = aggregateGreeks(s.Legs, chain)
	s.LiquidityTier = g.strategyTier(s, chain)

	// Contracts sized off the per-contract max loss against the risk budget.
	maxLossPerUnit, _ := s.MaxLoss.Float64()
	contracts := 1
	if maxLossPerUnit > 0 {
		contracts = int(math.Floor(g.cfg.RiskBudget / maxLossPerUnit))
	}
	if contracts < 1 {
		contracts = 1
	}
	if contracts > g.cfg.MaxContracts {
		contracts = g.cfg.MaxContracts
	}
	s.Contracts = contracts

	s.CapitalRequired = s.MaxLoss.Mul(models.MoneyFromFloat(float64(contracts)))
	s.Commission = models.MoneyFromFloat(g.cfg.CommissionPerContract).
		Mul(models.MoneyFromFloat(float64(len(s.Legs) * contracts)))
}

// aggregateGreeks sums leg greeks with short legs negated, scaled to the
// 100-share contract multiplier. Returns nil when no leg exposes greeks.
func aggregateGreeks(legs []models.StrategyLeg, chain *models.OptionChain) *models.PositionGreeks {
	var agg models.PositionGreeks
	found := false
	for _, leg := range legs {
		q, ok := chain.Quote(leg.Type, leg.Strike)
		if !ok || q.Greeks == nil {
			continue
		}
		found = true
		sign := 1.0
		if leg.IsShort() {
			sign = -1.0
		}
		n := float64(leg.Contracts) * 100
		agg.Delta += q.Greeks.Delta * sign * n
		agg.Gamma += q.Greeks.Gamma * sign * n
		agg.Theta += q.Greeks.Theta * sign * n
		agg.Vega += q.Greeks.Vega * sign * n
	}
	if !found {
		return nil
	}
	return &agg
}

// strategyTier evaluates only the short legs: long legs are cheap
// protection whose illiquidity doesn't block a fill. The tier is the worst
// short-leg verdict.
func (g *Generator) strategyTier(s *models.Strategy, chain *models.OptionChain) *models.LiquidityTier {
	if g.classifier == nil {
		return nil
	}
	tier := models.LiquidityExcellent
	found := false
	for _, leg := range s.ShortLegs() {
		q, ok := chain.Quote(leg.Type, leg.Strike)
		if !ok {
			continue
		}
		found = true
		if t := g.classifier.Classify(q); t.Worse(tier) {
			tier = t
		}
	}
	if !found {
		return nil
	}
	return &tier
}

// impliedMoveDollars converts the implied move percent to a dollar width
// off the underlying price.
func impliedMoveDollars(chain *models.OptionChain, vrp models.VRPResult) float64 {
	price, _ := chain.StockPrice.Float64()
	return price * float64(vrp.ImpliedMovePct) / 100
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
