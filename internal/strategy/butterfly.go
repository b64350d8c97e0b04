package strategy

import (
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/models"
)

// buildButterfly sells the at-the-money straddle and buys protective wings
// on both sides.
func (g *Generator) buildButterfly(chain *models.OptionChain, vrp models.VRPResult) (*models.Strategy, error) {
	price, _ := chain.StockPrice.Float64()

	atmCallStrike, okC := chain.NearestStrike(models.Call, price)
	atmPutStrike, okP := chain.NearestStrike(models.Put, price)
	if !okC || !okP {
		return nil, apperrors.NewSkipError(string(models.IronButterfly), "no at-the-money strikes", nil)
	}

	wing := price * g.cfg.WingWidthPct
	if wing < g.cfg.MinWingWidth {
		wing = g.cfg.MinWingWidth
	}

	wingCallStrike, okWC := chain.NearestStrike(models.Call, float64(atmCallStrike)+wing)
	wingPutStrike, okWP := chain.NearestStrike(models.Put, float64(atmPutStrike)-wing)
	if !okWC || !okWP || wingCallStrike <= atmCallStrike || wingPutStrike >= atmPutStrike {
		return nil, apperrors.NewSkipError(string(models.IronButterfly), "no wing strikes beyond the body", nil)
	}

	atmCall, _ := chain.Quote(models.Call, atmCallStrike)
	atmPut, _ := chain.Quote(models.Put, atmPutStrike)
	wingCall, _ := chain.Quote(models.Call, wingCallStrike)
	wingPut, _ := chain.Quote(models.Put, wingPutStrike)

	maxSpread := models.Percentage(g.cfg.MaxSpreadPct)
	if !atmCall.IsLiquid(g.cfg.MinOI, maxSpread) || !atmPut.IsLiquid(g.cfg.MinOI, maxSpread) {
		return nil, apperrors.NewSkipError(string(models.IronButterfly), "illiquid body quote", apperrors.ErrInsufficientLiquidity)
	}

	credit := atmCall.Mid().Add(atmPut.Mid()).Sub(wingCall.Mid()).Sub(wingPut.Mid())
	if credit.LessThan(models.MoneyFromFloat(g.cfg.MinCredit)) || !credit.IsPositive() {
		return nil, apperrors.NewSkipError(string(models.IronButterfly), "net credit below floor", apperrors.ErrInsufficientCredit)
	}

	// Actual wing width off the listed strikes; the wider side bounds risk.
	callWidth := wingCallStrike.Money().Sub(atmCallStrike.Money())
	putWidth := atmPutStrike.Money().Sub(wingPutStrike.Money())
	width := callWidth
	if putWidth.GreaterThan(width) {
		width = putWidth
	}
	if !width.GreaterThan(credit) {
		return nil, apperrors.NewSkipError(string(models.IronButterfly), "credit exceeds wing width", nil)
	}

	maxProfit := credit.Mul(contractMultiplier)
	maxLoss := width.Sub(credit).Mul(contractMultiplier)

	body := atmCallStrike.Money()
	breakevens := []models.Money{body.Sub(credit), body.Add(credit)}

	mp, _ := maxProfit.Float64()
	ml, _ := maxLoss.Float64()

	return &models.Strategy{
		Type: models.IronButterfly,
		Legs: []models.StrategyLeg{
			{Strike: atmPutStrike, Type: models.Put, Action: models.ActionSell, Contracts: 1, Premium: atmPut.Mid()},
			{Strike: atmCallStrike, Type: models.Call, Action: models.ActionSell, Contracts: 1, Premium: atmCall.Mid()},
			{Strike: wingPutStrike, Type: models.Put, Action: models.ActionBuy, Contracts: 1, Premium: wingPut.Mid()},
			{Strike: wingCallStrike, Type: models.Call, Action: models.ActionBuy, Contracts: 1, Premium: wingCall.Mid()},
		},
		NetCredit:  credit,
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		Breakevens: breakevens,
		POP:        g.butterflyPOP(credit, price),
		RewardRisk: mp / ml,
	}, nil
}

// butterflyPOP is the configured linear formula on the profit-zone width
// as a percent of price, clamped to the configured range.
func (g *Generator) butterflyPOP(credit models.Money, price float64) float64 {
	if price <= 0 {
		return g.cfg.FlyPOPMin
	}
	c, _ := credit.Float64()
	zonePct := 2 * c / price * 100
	return clampFloat(g.cfg.FlyPOPBase+g.cfg.FlyPOPPerZonePc*zonePct, g.cfg.FlyPOPMin, g.cfg.FlyPOPMax)
}
