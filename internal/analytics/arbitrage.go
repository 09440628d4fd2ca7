package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SourceQuote is the most recent valid quote from one source.
type SourceQuote struct {
	Source    string
	Price     float64
	Timestamp time.Time
}

// Opportunity labels the cheaper source as the buy side and the costlier
// as the sell side. PercentDiff is expressed in percent, relative to the
// lower price.
type Opportunity struct {
	BuySource   string          `json:"buy_source"`
	SellSource  string          `json:"sell_source"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	PriceDiff   decimal.Decimal `json:"price_diff"`
	PercentDiff decimal.Decimal `json:"percent_diff"`
}

var decimalHundred = decimal.NewFromInt(100)

// DetectArbitrage compares the latest quote from every executable source
// pairwise and emits an opportunity whenever the relative spread reaches
// the threshold (a ratio, e.g. 0.001 for 0.1%). Fewer than two valid
// executable quotes yields no opportunities; equal or non-positive prices
// never produce one.
func DetectArbitrage(latest []SourceQuote, executable map[string]bool, threshold decimal.Decimal) []Opportunity {
	quotes := make([]SourceQuote, 0, len(latest))
	for _, q := range latest {
		if !executable[q.Source] {
			continue
		}
		if q.Price <= 0 {
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) < 2 {
		return nil
	}

	// Stable output ordering regardless of map iteration upstream.
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Source < quotes[j].Source })

	var opportunities []Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			priceA := decimal.NewFromFloat(quotes[i].Price)
			priceB := decimal.NewFromFloat(quotes[j].Price)
			if priceA.Equal(priceB) {
				continue
			}

			low, high := priceA, priceB
			buy, sell := quotes[i], quotes[j]
			if priceB.LessThan(priceA) {
				low, high = priceB, priceA
				buy, sell = quotes[j], quotes[i]
			}

			spread := high.Sub(low)
			ratio := spread.Div(low)
			if ratio.LessThan(threshold) {
				continue
			}

			opportunities = append(opportunities, Opportunity{
				BuySource:   buy.Source,
				SellSource:  sell.Source,
				BuyPrice:    low,
				SellPrice:   high,
				PriceDiff:   spread,
				PercentDiff: ratio.Mul(decimalHundred),
			})
		}
	}
	return opportunities
}
