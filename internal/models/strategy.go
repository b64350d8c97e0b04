package models

import "time"

// StrategyLeg is a single unit leg of a multi-leg structure. Contracts is
// always 1 on the leg; scaling happens through Strategy.Contracts.
type StrategyLeg struct {
	Strike    Strike
	Type      OptionType
	Action    Action
	Contracts int
	Premium   Money // quote mid at construction time
}

// IsShort reports whether the leg was sold.
func (l StrategyLeg) IsShort() bool {
	return l.Action == ActionSell
}

// IsLong reports whether the leg was bought.
func (l StrategyLeg) IsLong() bool {
	return l.Action == ActionBuy
}

// PositionGreeks holds the signed greek sums across all legs of a position.
type PositionGreeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// Strategy is a fully built candidate structure. Score fields and Rationale
// are populated from scorer output before ranking; everything else is fixed
// at construction.
type Strategy struct {
	Type            StrategyType
	Legs            []StrategyLeg
	NetCredit       Money
	MaxProfit       Money // per contract, at the 100-share multiplier
	MaxLoss         Money // per contract, at the 100-share multiplier
	Breakevens      []Money
	POP             float64 // probability of profit, in [0, 1]
	RewardRisk      float64
	Contracts       int
	CapitalRequired Money
	Commission      Money
	UnderlyingPrice Money           // stock price the structure was built against
	Greeks          *PositionGreeks // nil when no leg exposes greeks
	LiquidityTier   *LiquidityTier  // nil when no classifier verdict is available

	OverallScore       float64
	ProfitabilityScore float64
	RiskScore          float64
	Rationale          string
}

// ShortLegs returns the sold legs of the strategy.
func (s *Strategy) ShortLegs() []StrategyLeg {
	var legs []StrategyLeg
	for _, l := range s.Legs {
		if l.IsShort() {
			legs = append(legs, l)
		}
	}
	return legs
}

// StrategyRecommendation is the generator's output for one ticker and
// expiration: up to three ranked strategies plus the context they were
// built from.
type StrategyRecommendation struct {
	Ticker           string
	Expiration       time.Time
	StockPrice       Money
	ImpliedMovePct   Percentage
	VRPRatio         float64
	Bias             Bias
	Strategies       []Strategy
	RecommendedIndex int
	Rationale        string
}

// Recommended returns the top-ranked strategy.
func (r *StrategyRecommendation) Recommended() *Strategy {
	if len(r.Strategies) == 0 {
		return nil
	}
	return &r.Strategies[r.RecommendedIndex]
}
