package strategy

import (
	"math"

	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/models"
)

// contractMultiplier converts per-share economics to per-contract dollars.
var contractMultiplier = models.MoneyFromFloat(100)

// buildVertical constructs a bull-put (side == Put) or bear-call
// (side == Call) credit spread. Strike selection prefers delta targeting;
// when deltas are missing, or the delta-chosen short strike falls inside
// the implied-move band, it falls back to distance-based placement.
func (g *Generator) buildVertical(chain *models.OptionChain, vrp models.VRPResult, side models.OptionType) (*models.Strategy, error) {
	stype := models.BullPutSpread
	if side == models.Call {
		stype = models.BearCallSpread
	}

	price, _ := chain.StockPrice.Float64()
	imd := impliedMoveDollars(chain, vrp)

	short, long, ok := g.pickVerticalStrikes(chain, side, price, imd)
	if !ok {
		return nil, apperrors.NewSkipError(string(stype), "no suitable strikes", nil)
	}

	shortQ, _ := chain.Quote(side, short)
	longQ, _ := chain.Quote(side, long)

	if !shortQ.IsLiquid(g.cfg.MinOI, models.Percentage(g.cfg.MaxSpreadPct)) ||
		!longQ.IsLiquid(g.cfg.MinOI, models.Percentage(g.cfg.MaxSpreadPct)) {
		return nil, apperrors.NewSkipError(string(stype), "illiquid strike quote", apperrors.ErrInsufficientLiquidity)
	}

	credit := shortQ.Mid().Sub(longQ.Mid())
	if credit.LessThan(models.MoneyFromFloat(g.cfg.MinCredit)) || !credit.IsPositive() {
		return nil, apperrors.NewSkipError(string(stype), "net credit below floor", apperrors.ErrInsufficientCredit)
	}

	width := short.Money().Sub(long.Money()).Abs()
	if !width.GreaterThan(credit) {
		return nil, apperrors.NewSkipError(string(stype), "credit exceeds spread width", nil)
	}

	var breakeven models.Money
	if side == models.Put {
		breakeven = short.Money().Sub(credit)
	} else {
		breakeven = short.Money().Add(credit)
	}

	pop := verticalPOP(shortQ, price, float64(short), imd)
	maxProfit := credit.Mul(contractMultiplier)
	maxLoss := width.Sub(credit).Mul(contractMultiplier)

	mp, _ := maxProfit.Float64()
	ml, _ := maxLoss.Float64()

	return &models.Strategy{
		Type: stype,
		Legs: []models.StrategyLeg{
			{Strike: short, Type: side, Action: models.ActionSell, Contracts: 1, Premium: shortQ.Mid()},
			{Strike: long, Type: side, Action: models.ActionBuy, Contracts: 1, Premium: longQ.Mid()},
		},
		NetCredit:  credit,
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		Breakevens: []models.Money{breakeven},
		POP:        pop,
		RewardRisk: mp / ml,
	}, nil
}

// pickVerticalStrikes returns the short and long strikes for a credit
// spread on the given side, both present in the chain, with the long
// strike strictly further out of the money.
func (g *Generator) pickVerticalStrikes(chain *models.OptionChain, side models.OptionType, price, imd float64) (models.Strike, models.Strike, bool) {
	if short, long, ok := g.deltaStrikes(chain, side, price, imd); ok {
		return short, long, true
	}
	return g.distanceStrikes(chain, side, price, imd)
}

func (g *Generator) deltaStrikes(chain *models.OptionChain, side models.OptionType, price, imd float64) (models.Strike, models.Strike, bool) {
	short, ok := chain.StrikeAtDelta(side, g.cfg.ShortDeltaTarget)
	if !ok {
		return 0, 0, false
	}
	// A short strike inside the implied-move band would be run over by an
	// ordinary post-earnings move; hand over to distance placement.
	if math.Abs(float64(short)-price) < imd {
		return 0, 0, false
	}
	long, ok := chain.StrikeAtDelta(side, g.cfg.LongDeltaTarget)
	if !ok || !furtherOTM(side, long, short) {
		return 0, 0, false
	}
	return short, long, true
}

func (g *Generator) distanceStrikes(chain *models.OptionChain, side models.OptionType, price, imd float64) (models.Strike, models.Strike, bool) {
	offset := imd * (1 + g.cfg.ImpliedMoveBuffer)
	width := g.cfg.SpreadWidthHigh
	if price < g.cfg.WidthPriceCutoff {
		width = g.cfg.SpreadWidthLow
	}

	var shortTarget, longTarget float64
	if side == models.Put {
		shortTarget = price - offset
		longTarget = shortTarget - width
	} else {
		shortTarget = price + offset
		longTarget = shortTarget + width
	}

	short, ok := chain.NearestStrike(side, shortTarget)
	if !ok {
		return 0, 0, false
	}
	long, ok := chain.NearestStrike(side, longTarget)
	if !ok || !furtherOTM(side, long, short) {
		return 0, 0, false
	}
	return short, long, true
}

// furtherOTM reports whether the long strike is strictly further out of
// the money than the short: lower for puts, higher for calls.
func furtherOTM(side models.OptionType, long, short models.Strike) bool {
	if side == models.Put {
		return long < short
	}
	return long > short
}

// verticalPOP estimates probability of profit for a credit spread. With
// greeks it is 1 - |short delta|; without, it scales with how far beyond
// the implied move the short strike sits.
func verticalPOP(shortQ models.OptionQuote, price, shortStrike, imd float64) float64 {
	if shortQ.Greeks != nil {
		return clampFloat(1-math.Abs(shortQ.Greeks.Delta), 0, 1)
	}
	if imd <= 0 {
		return 0.5
	}
	ratio := math.Abs(price-shortStrike) / imd
	return clampFloat(0.50+0.30*ratio, 0.50, 0.90)
}
