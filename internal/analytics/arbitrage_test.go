package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testThreshold = decimal.NewFromFloat(0.001)

func executableSet() map[string]bool {
	return map[string]bool{"Binance": true, "UniswapV3": true, "CoinGecko": false}
}

func TestDetectArbitrageSpread(t *testing.T) {
	now := time.Now()
	quotes := []SourceQuote{
		{Source: "Binance", Price: 100.0, Timestamp: now},
		{Source: "UniswapV3", Price: 105.0, Timestamp: now},
	}

	opps := DetectArbitrage(quotes, executableSet(), testThreshold)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	opp := opps[0]
	if opp.BuySource != "Binance" || opp.SellSource != "UniswapV3" {
		t.Fatalf("buy side must be the cheaper source, got %+v", opp)
	}
	if math.Abs(opp.PercentDiff.InexactFloat64()-5.0) > 1e-9 {
		t.Fatalf("expected 5%% spread, got %s", opp.PercentDiff)
	}
	if math.Abs(opp.PriceDiff.InexactFloat64()-5.0) > 1e-9 {
		t.Fatalf("expected price diff 5, got %s", opp.PriceDiff)
	}
}

func TestDetectArbitrageExcludesAggregators(t *testing.T) {
	now := time.Now()
	quotes := []SourceQuote{
		{Source: "Binance", Price: 100.0, Timestamp: now},
		{Source: "CoinGecko", Price: 110.0, Timestamp: now},
	}
	if opps := DetectArbitrage(quotes, executableSet(), testThreshold); len(opps) != 0 {
		t.Fatalf("aggregator quotes must never form an opportunity, got %d", len(opps))
	}
}

func TestDetectArbitrageNeedsTwoValidQuotes(t *testing.T) {
	now := time.Now()
	quotes := []SourceQuote{
		{Source: "Binance", Price: 100.0, Timestamp: now},
		{Source: "UniswapV3", Price: 0, Timestamp: now},
	}
	if opps := DetectArbitrage(quotes, executableSet(), testThreshold); len(opps) != 0 {
		t.Fatalf("a non-positive price must not count as a valid quote, got %d", len(opps))
	}
}

func TestDetectArbitrageEqualPrices(t *testing.T) {
	now := time.Now()
	quotes := []SourceQuote{
		{Source: "Binance", Price: 100.0, Timestamp: now},
		{Source: "UniswapV3", Price: 100.0, Timestamp: now},
	}
	if opps := DetectArbitrage(quotes, executableSet(), testThreshold); len(opps) != 0 {
		t.Fatalf("equal prices must not form an opportunity, got %d", len(opps))
	}
}

func TestDetectArbitrageBelowThreshold(t *testing.T) {
	now := time.Now()
	quotes := []SourceQuote{
		{Source: "Binance", Price: 100.0, Timestamp: now},
		{Source: "UniswapV3", Price: 100.05, Timestamp: now},
	}
	if opps := DetectArbitrage(quotes, executableSet(), testThreshold); len(opps) != 0 {
		t.Fatalf("a 0.05%% spread is under the 0.1%% threshold, got %d", len(opps))
	}
}

func TestDetectArbitrageThresholdBoundary(t *testing.T) {
	now := time.Now()
	quotes := []SourceQuote{
		{Source: "Binance", Price: 1000.0, Timestamp: now},
		{Source: "UniswapV3", Price: 1001.0, Timestamp: now},
	}
	opps := DetectArbitrage(quotes, executableSet(), testThreshold)
	if len(opps) != 1 {
		t.Fatalf("a spread exactly at threshold must fire, got %d", len(opps))
	}
	if math.Abs(opps[0].PercentDiff.InexactFloat64()-0.1) > 1e-9 {
		t.Fatalf("expected 0.1%%, got %s", opps[0].PercentDiff)
	}
}
