package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-screener/internal/config"
	apperrors "vrp-screener/internal/errors"
	"vrp-screener/internal/models"
)

// quote builds a liquid greekless quote around the given mid with a
// ten-cent spread.
func quote(mid float64) models.OptionQuote {
	return models.OptionQuote{
		Bid:          models.MoneyFromFloat(mid - 0.05),
		Ask:          models.MoneyFromFloat(mid + 0.05),
		OpenInterest: 500,
		Volume:       200,
	}
}

// testChain is a $200 underlying with $5 strikes and no greeks, so strike
// selection exercises the distance fallback.
func testChain() *models.OptionChain {
	chain := &models.OptionChain{
		Ticker:     "TEST",
		Expiration: time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC),
		StockPrice: models.MoneyFromFloat(200),
		Calls:      map[models.Strike]models.OptionQuote{},
		Puts:       map[models.Strike]models.OptionQuote{},
	}
	putMids := map[models.Strike]float64{
		170: 0.75, 175: 1.20, 180: 2.00, 185: 2.95, 190: 3.60,
		195: 5.35, 200: 8.00, 205: 11.00, 210: 14.50,
	}
	callMids := map[models.Strike]float64{
		190: 14.50, 195: 11.00, 200: 8.00, 205: 5.25, 210: 3.50,
		215: 2.75, 220: 1.80, 225: 1.10, 230: 0.60,
	}
	for k, mid := range putMids {
		chain.Puts[k] = quote(mid)
	}
	for k, mid := range callMids {
		chain.Calls[k] = quote(mid)
	}
	return chain
}

func neutralVRP(ratio float64) models.VRPResult {
	return models.VRPResult{
		ImpliedMovePct:        8,
		HistoricalMeanMovePct: 8 / models.Percentage(ratio),
		Ratio:                 ratio,
		Tier:                  models.VRPExcellent,
	}
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	gen, err := NewGenerator(
		config.DefaultStrategyConfig(),
		config.DefaultScoringWeights(),
		NewOISpreadClassifier(),
		zerolog.Nop(),
	)
	require.NoError(t, err)
	return gen
}

func TestGenerateHighVRPNeutral(t *testing.T) {
	gen := newTestGenerator(t)

	rec, err := gen.Generate("TEST", testChain(), neutralVRP(2.0), nil)
	require.NoError(t, err)

	// A rich, neutral setup on a liquid chain yields the full shortlist.
	require.GreaterOrEqual(t, len(rec.Strategies), 2)
	require.LessOrEqual(t, len(rec.Strategies), 3)

	types := map[models.StrategyType]bool{}
	for _, s := range rec.Strategies {
		types[s.Type] = true
	}
	assert.True(t, types[models.IronCondor], "expected an iron condor candidate")
	assert.True(t, types[models.BullPutSpread], "expected a bull put candidate")

	// Ranked descending, recommendation is the top.
	for i := 1; i < len(rec.Strategies); i++ {
		assert.GreaterOrEqual(t, rec.Strategies[i-1].OverallScore, rec.Strategies[i].OverallScore)
	}
	assert.Equal(t, 0, rec.RecommendedIndex)
	require.NotNil(t, rec.Recommended())
	assert.NotEmpty(t, rec.Rationale)
}

// staticChainProvider serves one fixed chain regardless of ticker.
type staticChainProvider struct {
	chain *models.OptionChain
	err   error
}

func (p staticChainProvider) Chain(_ context.Context, _ string) (*models.OptionChain, error) {
	return p.chain, p.err
}

func TestGenerateLiveFetchesFromProvider(t *testing.T) {
	gen := newTestGenerator(t)

	rec, err := gen.GenerateLive(context.Background(),
		staticChainProvider{chain: testChain()}, "TEST", neutralVRP(2.0), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Strategies)
	assert.Equal(t, "TEST", rec.Ticker)
}

func TestGenerateLivePropagatesProviderError(t *testing.T) {
	gen := newTestGenerator(t)
	boom := errors.New("feed down")

	_, err := gen.GenerateLive(context.Background(),
		staticChainProvider{err: boom}, "TEST", neutralVRP(2.0), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, apperrors.ErrNoViableStrategy)
}

func TestGenerateMarginalVRPLimitsShortlist(t *testing.T) {
	gen := newTestGenerator(t)

	rec, err := gen.Generate("TEST", testChain(), neutralVRP(1.23), nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(rec.Strategies), 2)
	assert.Equal(t, models.BullPutSpread, rec.Strategies[0].Type,
		"thin premium without bias goes to the bull put")
}

func TestGenerateVerticalEconomics(t *testing.T) {
	gen := newTestGenerator(t)

	rec, err := gen.Generate("TEST", testChain(), neutralVRP(1.23), nil)
	require.NoError(t, err)

	s := rec.Strategies[0]
	require.Equal(t, models.BullPutSpread, s.Type)
	require.Len(t, s.Legs, 2)

	// Implied move $16 buffered by 10% puts the short near 182.40 and the
	// long one width below.
	assert.Equal(t, models.Strike(180), s.Legs[0].Strike)
	assert.Equal(t, models.ActionSell, s.Legs[0].Action)
	assert.Equal(t, models.Strike(175), s.Legs[1].Strike)
	assert.Equal(t, models.ActionBuy, s.Legs[1].Action)

	credit, _ := s.NetCredit.Float64()
	maxProfit, _ := s.MaxProfit.Float64()
	maxLoss, _ := s.MaxLoss.Float64()
	assert.InDelta(t, 0.80, credit, 1e-9)
	assert.InDelta(t, 80, maxProfit, 1e-9)
	assert.InDelta(t, 420, maxLoss, 1e-9)

	require.Len(t, s.Breakevens, 1)
	be, _ := s.Breakevens[0].Float64()
	assert.InDelta(t, 179.20, be, 1e-9)

	assert.GreaterOrEqual(t, s.POP, 0.0)
	assert.LessOrEqual(t, s.POP, 1.0)
}

func TestGenerateCapitalEqualsMaxLossTimesContracts(t *testing.T) {
	gen := newTestGenerator(t)

	rec, err := gen.Generate("TEST", testChain(), neutralVRP(2.0), nil)
	require.NoError(t, err)

	for _, s := range rec.Strategies {
		expected := s.MaxLoss.Mul(models.MoneyFromFloat(float64(s.Contracts)))
		assert.True(t, s.CapitalRequired.Equal(expected),
			"%s: capital %s != max loss %s x %d", s.Type, s.CapitalRequired, s.MaxLoss, s.Contracts)
		assert.GreaterOrEqual(t, s.Contracts, 1)
		assert.LessOrEqual(t, s.Contracts, config.DefaultStrategyConfig().MaxContracts)
		assert.True(t, s.UnderlyingPrice.Equal(models.MoneyFromFloat(200)),
			"%s: scoring needs the price the structure was built against", s.Type)
	}
}

func TestGenerateBearishBiasPrefersCallSide(t *testing.T) {
	gen := newTestGenerator(t)
	skew := &models.SkewResult{Bias: models.BiasBearish, Slope: -0.4}

	rec, err := gen.Generate("TEST", testChain(), neutralVRP(1.6), skew)
	require.NoError(t, err)

	types := map[models.StrategyType]bool{}
	for _, s := range rec.Strategies {
		types[s.Type] = true
	}
	assert.True(t, types[models.BearCallSpread])
	assert.False(t, types[models.BullPutSpread],
		"counter-trend bull put must not be in the bearish shortlist")
}

func TestGenerateIlliquidChainFails(t *testing.T) {
	gen := newTestGenerator(t)

	chain := testChain()
	for k, q := range chain.Puts {
		q.OpenInterest = 2
		chain.Puts[k] = q
	}
	for k, q := range chain.Calls {
		q.OpenInterest = 2
		chain.Calls[k] = q
	}

	_, err := gen.Generate("TEST", chain, neutralVRP(2.0), nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoViableStrategy))
}

func TestGenerateEmptyChainFails(t *testing.T) {
	gen := newTestGenerator(t)

	_, err := gen.Generate("TEST", &models.OptionChain{}, neutralVRP(2.0), nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoViableStrategy))
}

func TestGenerateDeltaTargetingOutsideBand(t *testing.T) {
	gen := newTestGenerator(t)

	// Implied move of 2% ($4) leaves the 0.30-delta strike well outside the
	// band, so delta targeting wins over distance placement.
	chain := testChain()
	withDelta := func(q models.OptionQuote, delta float64) models.OptionQuote {
		q.Greeks = &models.Greeks{Delta: delta, Theta: -0.05, Vega: 0.10}
		return q
	}
	chain.Puts[190] = withDelta(chain.Puts[190], -0.30)
	chain.Puts[185] = withDelta(chain.Puts[185], -0.20)
	chain.Puts[180] = withDelta(chain.Puts[180], -0.12)
	chain.Puts[175] = withDelta(chain.Puts[175], -0.08)

	vrp := models.VRPResult{ImpliedMovePct: 2, HistoricalMeanMovePct: 1.6, Ratio: 1.25}
	rec, err := gen.Generate("TEST", chain, vrp, nil)
	require.NoError(t, err)

	s := rec.Strategies[0]
	require.Equal(t, models.BullPutSpread, s.Type)
	assert.Equal(t, models.Strike(190), s.Legs[0].Strike)
	assert.Equal(t, models.Strike(185), s.Legs[1].Strike)

	// POP from the short delta.
	assert.InDelta(t, 0.70, s.POP, 1e-9)
}

func TestCondorPOPFromDeltas(t *testing.T) {
	chain := testChain()
	putQ := chain.Puts[180]
	putQ.Greeks = &models.Greeks{Delta: -0.20}
	chain.Puts[180] = putQ
	callQ := chain.Calls[220]
	callQ.Greeks = &models.Greeks{Delta: 0.15}
	chain.Calls[220] = callQ

	putSide := &models.Strategy{Legs: []models.StrategyLeg{{Strike: 180, Type: models.Put, Action: models.ActionSell}}}
	callSide := &models.Strategy{Legs: []models.StrategyLeg{{Strike: 220, Type: models.Call, Action: models.ActionSell}}}

	assert.InDelta(t, 0.65, condorPOP(chain, putSide, callSide), 1e-9)
}

func TestCondorPOPFallbackCombinesSides(t *testing.T) {
	chain := testChain() // no greeks
	putSide := &models.Strategy{
		POP:  0.875,
		Legs: []models.StrategyLeg{{Strike: 180, Type: models.Put, Action: models.ActionSell}},
	}
	callSide := &models.Strategy{
		POP:  0.875,
		Legs: []models.StrategyLeg{{Strike: 220, Type: models.Call, Action: models.ActionSell}},
	}

	assert.InDelta(t, 0.75, condorPOP(chain, putSide, callSide), 1e-9)

	// Weak single-sided POPs floor at zero instead of going negative.
	putSide.POP = 0.4
	callSide.POP = 0.5
	assert.Zero(t, condorPOP(chain, putSide, callSide))
}
