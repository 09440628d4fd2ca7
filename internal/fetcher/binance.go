package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"token-signal-watch/internal/config"
)

const binanceSourceName = "Binance"

// Binance fetches last price and 24h volume from the ticker endpoint, and
// doubles as the reference-asset price source.
type Binance struct {
	opts   config.BinanceConfig
	exec   *Executor
	logger zerolog.Logger
}

// NewBinance constructs a Binance ticker adapter.
func NewBinance(opts config.BinanceConfig, exec *Executor, logger zerolog.Logger) *Binance {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.binance.com/api/v3"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Binance{
		opts:   opts,
		exec:   exec,
		logger: logger.With().Str("component", "binance_fetcher").Logger(),
	}
}

// Name implements SourceAdapter.
func (b *Binance) Name() string { return binanceSourceName }

type binanceTicker struct {
	LastPrice string `json:"lastPrice"`
	Volume    string `json:"volume"`
}

// Fetch retrieves the 24h ticker for one instrument.
func (b *Binance) Fetch(ctx context.Context, token config.TokenConfig, _ ReferencePrice) (Quote, error) {
	if token.BinanceID == "" {
		return Quote{Source: binanceSourceName}, fmt.Errorf("token %s has no binance id", token.Symbol)
	}

	endpoint := fmt.Sprintf("%s/ticker/24hr?symbol=%s", b.opts.BaseURL, url.QueryEscape(token.BinanceID))
	res, err := b.exec.Do(ctx, Request{Method: http.MethodGet, URL: endpoint})
	if err != nil {
		return Quote{Source: binanceSourceName, Raw: res.Body, Elapsed: res.Elapsed}, err
	}

	var ticker binanceTicker
	if err := json.Unmarshal(res.Body, &ticker); err != nil {
		return Quote{Source: binanceSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("decode ticker: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return Quote{Source: binanceSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("parse last price: %w", err)
	}
	if price <= 0 {
		return Quote{Source: binanceSourceName, Raw: res.Body, Elapsed: res.Elapsed}, errors.New("ticker returned non-positive price")
	}

	volume, err := strconv.ParseFloat(ticker.Volume, 64)
	if err != nil {
		return Quote{Source: binanceSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("parse volume: %w", err)
	}

	return Quote{
		Source:    binanceSourceName,
		PriceUSD:  price,
		Volume24h: volume,
		Raw:       res.Body,
		Elapsed:   res.Elapsed,
	}, nil
}

type binancePrice struct {
	Price string `json:"price"`
}

// FetchReference resolves the reference ETH/USD price. A failed lookup
// degrades to the configured fallback value so ratio-based adapters can
// still proceed with a best-effort price.
func (b *Binance) FetchReference(ctx context.Context) (ReferencePrice, Result, error) {
	symbol := b.opts.ReferenceSymbol
	if symbol == "" {
		symbol = "ETHUSDT"
	}

	endpoint := fmt.Sprintf("%s/ticker/price?symbol=%s", b.opts.BaseURL, url.QueryEscape(symbol))
	res, err := b.exec.Do(ctx, Request{Method: http.MethodGet, URL: endpoint})
	if err != nil {
		return b.fallback(), res, err
	}

	var tick binancePrice
	if err := json.Unmarshal(res.Body, &tick); err != nil {
		return b.fallback(), res, fmt.Errorf("decode reference price: %w", err)
	}
	price, err := strconv.ParseFloat(tick.Price, 64)
	if err != nil || price <= 0 {
		return b.fallback(), res, fmt.Errorf("invalid reference price %q", tick.Price)
	}

	return ReferencePrice{ETHUSD: price}, res, nil
}

func (b *Binance) fallback() ReferencePrice {
	fallback := b.opts.FallbackETHUSD
	if fallback <= 0 {
		fallback = 2000.0
	}
	return ReferencePrice{ETHUSD: fallback, Fallback: true}
}

var _ SourceAdapter = (*Binance)(nil)
var _ ReferenceFetcher = (*Binance)(nil)
