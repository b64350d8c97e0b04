package models

import (
	"math"
	"sort"
	"time"
)

// Strike is a price level. Ordering and equality are by numeric price.
type Strike float64

// Money converts the strike price to a cash amount.
func (s Strike) Money() Money {
	return MoneyFromFloat(float64(s))
}

// Greeks holds the option price sensitivities for a single contract.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// OptionQuote is a single option quote off the chain.
type OptionQuote struct {
	Bid          Money
	Ask          Money
	IV           Percentage
	OpenInterest int
	Volume       int
	Greeks       *Greeks // nil when the provider exposes no greeks
}

// Mid returns the bid/ask midpoint.
func (q OptionQuote) Mid() Money {
	return q.Bid.Add(q.Ask).Div(MoneyFromFloat(2))
}

// Spread returns the bid/ask spread.
func (q OptionQuote) Spread() Money {
	return q.Ask.Sub(q.Bid)
}

// SpreadPct returns the spread as a percent of the midpoint, or 0 when the mid is 0.
func (q OptionQuote) SpreadPct() Percentage {
	mid := q.Mid()
	if mid.IsZero() {
		return 0
	}
	pct, _ := q.Spread().Div(mid).Mul(MoneyFromFloat(100)).Float64()
	return Percentage(pct)
}

// IsLiquid applies the minimum open-interest and maximum spread gate.
func (q OptionQuote) IsLiquid(minOI int, maxSpreadPct Percentage) bool {
	if q.OpenInterest < minOI {
		return false
	}
	if q.Mid().IsZero() {
		return false
	}
	return q.SpreadPct() <= maxSpreadPct
}

// OptionChain is the quote chain for one ticker and expiration. The strike
// maps are sparse and the call/put key sets need not match.
type OptionChain struct {
	Ticker     string
	Expiration time.Time
	StockPrice Money
	Calls      map[Strike]OptionQuote
	Puts       map[Strike]OptionQuote
}

// SortedStrikes returns the strikes of the given side in ascending order.
func (c *OptionChain) SortedStrikes(side OptionType) []Strike {
	m := c.Puts
	if side == Call {
		m = c.Calls
	}
	strikes := make([]Strike, 0, len(m))
	for k := range m {
		strikes = append(strikes, k)
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i] < strikes[j] })
	return strikes
}

// Quote returns the quote for a strike on the given side.
func (c *OptionChain) Quote(side OptionType, strike Strike) (OptionQuote, bool) {
	if side == Call {
		q, ok := c.Calls[strike]
		return q, ok
	}
	q, ok := c.Puts[strike]
	return q, ok
}

// NearestStrike returns the listed strike closest to the target price.
func (c *OptionChain) NearestStrike(side OptionType, target float64) (Strike, bool) {
	strikes := c.SortedStrikes(side)
	if len(strikes) == 0 {
		return 0, false
	}
	best := strikes[0]
	bestDist := math.Abs(float64(best) - target)
	for _, s := range strikes[1:] {
		if d := math.Abs(float64(s) - target); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, true
}

// StrikeAtDelta returns the strike whose quote delta is closest in magnitude
// to the target. Strikes without greeks are ignored; ok is false when no
// quote on that side carries a delta.
func (c *OptionChain) StrikeAtDelta(side OptionType, targetAbsDelta float64) (Strike, bool) {
	m := c.Puts
	if side == Call {
		m = c.Calls
	}
	var best Strike
	bestDist := math.Inf(1)
	for strike, q := range m {
		if q.Greeks == nil {
			continue
		}
		if d := math.Abs(math.Abs(q.Greeks.Delta) - targetAbsDelta); d < bestDist {
			best, bestDist = strike, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
