// Package models provides domain models for the earnings screener.
package models

import (
	"github.com/shopspring/decimal"
)

// Money is a fixed-precision decimal amount. All monetary fields use it;
// cash is never represented as a binary float.
type Money = decimal.Decimal

// MoneyFromFloat converts a float price to Money.
func MoneyFromFloat(v float64) Money {
	return decimal.NewFromFloat(v)
}

// Percentage is a numeric value on the percent scale (8.0 means 8%),
// unless a field name says it is a decimal fraction.
type Percentage float64

// OptionType represents the side of an option contract.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Action represents the direction of a leg.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// StrategyType identifies a defined-risk option structure.
type StrategyType string

const (
	BullPutSpread  StrategyType = "BULL_PUT_SPREAD"
	BearCallSpread StrategyType = "BEAR_CALL_SPREAD"
	IronCondor     StrategyType = "IRON_CONDOR"
	IronButterfly  StrategyType = "IRON_BUTTERFLY"
)

// VRPTier classifies the variance risk premium of an earnings setup.
type VRPTier string

const (
	VRPExcellent VRPTier = "EXCELLENT"
	VRPGood      VRPTier = "GOOD"
	VRPMarginal  VRPTier = "MARGINAL"
	VRPSkip      VRPTier = "SKIP"
)

// LiquidityTier is the tradability verdict for a quote or strategy.
type LiquidityTier string

const (
	LiquidityExcellent LiquidityTier = "EXCELLENT"
	LiquidityWarning   LiquidityTier = "WARNING"
	LiquidityReject    LiquidityTier = "REJECT"
)

// Worse reports whether tier a is worse than tier b (REJECT beats WARNING beats EXCELLENT).
func (a LiquidityTier) Worse(b LiquidityTier) bool {
	return a.rank() > b.rank()
}

func (t LiquidityTier) rank() int {
	switch t {
	case LiquidityReject:
		return 2
	case LiquidityWarning:
		return 1
	default:
		return 0
	}
}

// Bias is the directional bias read off the volatility skew. It is a single
// tagged value produced once by the skew calculator; nothing downstream
// branches on alternative skew shapes.
type Bias string

const (
	BiasNeutral       Bias = "NEUTRAL"
	BiasBullish       Bias = "BULLISH"
	BiasBearish       Bias = "BEARISH"
	BiasStrongBullish Bias = "STRONG_BULLISH"
	BiasStrongBearish Bias = "STRONG_BEARISH"
	BiasWeakBullish   Bias = "WEAK_BULLISH"
	BiasWeakBearish   Bias = "WEAK_BEARISH"
)

// BiasStrength grades how pronounced a directional bias is.
type BiasStrength string

const (
	StrengthNone     BiasStrength = "NONE"
	StrengthWeak     BiasStrength = "WEAK"
	StrengthModerate BiasStrength = "MODERATE"
	StrengthStrong   BiasStrength = "STRONG"
)

// IsBullish reports whether the bias points up at any strength.
func (b Bias) IsBullish() bool {
	return b == BiasBullish || b == BiasStrongBullish || b == BiasWeakBullish
}

// IsBearish reports whether the bias points down at any strength.
func (b Bias) IsBearish() bool {
	return b == BiasBearish || b == BiasStrongBearish || b == BiasWeakBearish
}

// Strength returns the gradation of the bias.
func (b Bias) Strength() BiasStrength {
	switch b {
	case BiasStrongBullish, BiasStrongBearish:
		return StrengthStrong
	case BiasBullish, BiasBearish:
		return StrengthModerate
	case BiasWeakBullish, BiasWeakBearish:
		return StrengthWeak
	default:
		return StrengthNone
	}
}

// VRPResult is the variance-risk-premium verdict for one earnings setup,
// produced by the external VRP calculator.
type VRPResult struct {
	ImpliedMovePct        Percentage
	HistoricalMeanMovePct Percentage
	Ratio                 float64 // implied / historical
	Tier                  VRPTier
	EdgeScore             float64
}

// SkewResult is the directional read off the volatility skew,
// produced by the external skew calculator.
type SkewResult struct {
	Bias       Bias
	Slope      float64
	Confidence float64
}
