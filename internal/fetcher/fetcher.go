package fetcher

import (
	"context"
	"encoding/json"
	"time"

	"token-signal-watch/internal/config"
)

// Quote is a normalized price observation produced by a source adapter.
// Raw keeps the upstream payload verbatim for audit. Elapsed is the
// latency of the attempt that produced the payload, also populated on
// failure so callers can record it.
type Quote struct {
	Source    string
	PriceUSD  float64
	Volume24h float64
	Raw       json.RawMessage
	Elapsed   time.Duration
}

// ReferencePrice carries the shared ETH/USD price fetched once per cycle.
// Fallback is set when the lookup failed and the hardcoded value is in use.
type ReferencePrice struct {
	ETHUSD   float64
	Fallback bool
}

// SourceAdapter translates one upstream API into normalized quotes.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, token config.TokenConfig, ref ReferencePrice) (Quote, error)
}

// ReferenceFetcher resolves the reference-asset USD price that ratio-based
// sources depend on.
type ReferenceFetcher interface {
	FetchReference(ctx context.Context) (ReferencePrice, Result, error)
}
