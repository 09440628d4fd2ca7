package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"token-signal-watch/internal/config"
)

const coingeckoSourceName = "CoinGecko"

// Coingecko fetches spot price and 24h volume from the aggregator's
// simple-price endpoint. It is a pure aggregator, not a tradeable venue.
type Coingecko struct {
	opts   config.CoingeckoConfig
	exec   *Executor
	logger zerolog.Logger
}

// NewCoingecko constructs a CoinGecko adapter.
func NewCoingecko(opts config.CoingeckoConfig, exec *Executor, logger zerolog.Logger) *Coingecko {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.coingecko.com/api/v3"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Coingecko{
		opts:   opts,
		exec:   exec,
		logger: logger.With().Str("component", "coingecko_fetcher").Logger(),
	}
}

// Name implements SourceAdapter.
func (c *Coingecko) Name() string { return coingeckoSourceName }

type coingeckoEntry struct {
	USD       float64 `json:"usd"`
	USD24hVol float64 `json:"usd_24h_vol"`
}

// Fetch retrieves the aggregator quote keyed by the token's instrument id.
func (c *Coingecko) Fetch(ctx context.Context, token config.TokenConfig, _ ReferencePrice) (Quote, error) {
	if token.CoingeckoID == "" {
		return Quote{Source: coingeckoSourceName}, fmt.Errorf("token %s has no coingecko id", token.Symbol)
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true",
		c.opts.BaseURL, url.QueryEscape(token.CoingeckoID))
	res, err := c.exec.Do(ctx, Request{Method: http.MethodGet, URL: endpoint})
	if err != nil {
		return Quote{Source: coingeckoSourceName, Raw: res.Body, Elapsed: res.Elapsed}, err
	}

	var payload map[string]coingeckoEntry
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return Quote{Source: coingeckoSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("decode simple price: %w", err)
	}

	entry, ok := payload[token.CoingeckoID]
	if !ok {
		return Quote{Source: coingeckoSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("missing data for id %s", token.CoingeckoID)
	}
	if entry.USD <= 0 {
		return Quote{Source: coingeckoSourceName, Raw: res.Body, Elapsed: res.Elapsed}, errors.New("aggregator returned non-positive price")
	}

	return Quote{
		Source:    coingeckoSourceName,
		PriceUSD:  entry.USD,
		Volume24h: entry.USD24hVol,
		Raw:       res.Body,
		Elapsed:   res.Elapsed,
	}, nil
}

var _ SourceAdapter = (*Coingecko)(nil)
