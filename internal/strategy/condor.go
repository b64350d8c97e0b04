package strategy

import (
	"math"

	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/models"
)

// buildCondor combines an independent bull-put and bear-call spread into
// an iron condor. Either wing failing its own liquidity or credit floor
// fails the whole structure.
func (g *Generator) buildCondor(chain *models.OptionChain, vrp models.VRPResult) (*models.Strategy, error) {
	putSide, err := g.buildVertical(chain, vrp, models.Put)
	if err != nil {
		return nil, apperrors.NewSkipError(string(models.IronCondor), "put side failed", err)
	}
	callSide, err := g.buildVertical(chain, vrp, models.Call)
	if err != nil {
		return nil, apperrors.NewSkipError(string(models.IronCondor), "call side failed", err)
	}

	credit := putSide.NetCredit.Add(callSide.NetCredit)

	// Max loss is the larger of the two single-sided losses: only one side
	// can finish in the money, and the full credit offsets whichever does.
	putWidth := putSide.Legs[0].Strike.Money().Sub(putSide.Legs[1].Strike.Money()).Abs()
	callWidth := callSide.Legs[0].Strike.Money().Sub(callSide.Legs[1].Strike.Money()).Abs()
	width := putWidth
	if callWidth.GreaterThan(width) {
		width = callWidth
	}
	if !width.GreaterThan(credit) {
		return nil, apperrors.NewSkipError(string(models.IronCondor), "credit exceeds wing width", nil)
	}

	maxProfit := credit.Mul(contractMultiplier)
	maxLoss := width.Sub(credit).Mul(contractMultiplier)

	pop := condorPOP(chain, putSide, callSide)

	putShort := putSide.Legs[0].Strike.Money()
	callShort := callSide.Legs[0].Strike.Money()

	mp, _ := maxProfit.Float64()
	ml, _ := maxLoss.Float64()

	legs := make([]models.StrategyLeg, 0, 4)
	legs = append(legs, putSide.Legs...)
	legs = append(legs, callSide.Legs...)

	return &models.Strategy{
		Type:       models.IronCondor,
		Legs:       legs,
		NetCredit:  credit,
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		Breakevens: []models.Money{putShort.Sub(credit), callShort.Add(credit)},
		POP:        pop,
		RewardRisk: mp / ml,
	}, nil
}

// condorPOP computes the condor's probability of profit. With short-leg
// deltas it is 1 - |put delta| - |call delta| floored at 0; otherwise the
// two single-sided POPs are combined and clamped.
func condorPOP(chain *models.OptionChain, putSide, callSide *models.Strategy) float64 {
	putQ, okP := chain.Quote(models.Put, putSide.Legs[0].Strike)
	callQ, okC := chain.Quote(models.Call, callSide.Legs[0].Strike)
	if okP && okC && putQ.Greeks != nil && callQ.Greeks != nil {
		pop := 1 - math.Abs(putQ.Greeks.Delta) - math.Abs(callQ.Greeks.Delta)
		if pop < 0 {
			return 0
		}
		return pop
	}
	pop := putSide.POP + callSide.POP - 1
	if pop < 0 {
		return 0
	}
	return pop
}
