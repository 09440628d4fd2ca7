package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"token-signal-watch/internal/config"
)

const uniswapSourceName = "UniswapV3"

// The subgraph expects checksummed addresses lowered; top pool by locked
// value is taken as the canonical venue for the instrument.
const poolQueryTemplate = `{
  pools(first: 1, orderBy: totalValueLockedUSD, orderDirection: desc,
        where: { token0: %q }) {
    token0Price
    token1Price
    volumeUSD
  }
}`

// Uniswap derives a USD price from the top liquidity pool: the pool quotes
// the instrument as a ratio against the reference asset, which is then
// multiplied by the independently-fetched reference USD price.
type Uniswap struct {
	opts   config.UniswapConfig
	exec   *Executor
	logger zerolog.Logger
}

// NewUniswap constructs a liquidity-pool subgraph adapter.
func NewUniswap(opts config.UniswapConfig, exec *Executor, logger zerolog.Logger) *Uniswap {
	return &Uniswap{
		opts:   opts,
		exec:   exec,
		logger: logger.With().Str("component", "uniswap_fetcher").Logger(),
	}
}

// Name implements SourceAdapter.
func (u *Uniswap) Name() string { return uniswapSourceName }

type poolResponse struct {
	Data struct {
		Pools []struct {
			Token0Price string `json:"token0Price"`
			Token1Price string `json:"token1Price"`
			VolumeUSD   string `json:"volumeUSD"`
		} `json:"pools"`
	} `json:"data"`
}

// Fetch queries the top pool by total value locked for the token's contract
// address and derives its USD price via the reference-asset ratio.
func (u *Uniswap) Fetch(ctx context.Context, token config.TokenConfig, ref ReferencePrice) (Quote, error) {
	if token.UniswapID == "" {
		return Quote{Source: uniswapSourceName}, fmt.Errorf("token %s has no pool contract address", token.Symbol)
	}
	if !common.IsHexAddress(token.UniswapID) {
		return Quote{Source: uniswapSourceName}, fmt.Errorf("token %s: malformed pool contract address %q", token.Symbol, token.UniswapID)
	}
	address := strings.ToLower(common.HexToAddress(token.UniswapID).Hex())

	body, err := json.Marshal(map[string]string{
		"query": fmt.Sprintf(poolQueryTemplate, address),
	})
	if err != nil {
		return Quote{Source: uniswapSourceName}, fmt.Errorf("marshal pool query: %w", err)
	}

	res, err := u.exec.Do(ctx, Request{Method: http.MethodPost, URL: u.opts.SubgraphURL, Body: body})
	if err != nil {
		return Quote{Source: uniswapSourceName, Raw: res.Body, Elapsed: res.Elapsed}, err
	}

	var payload poolResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return Quote{Source: uniswapSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("decode pool response: %w", err)
	}
	if len(payload.Data.Pools) == 0 {
		return Quote{Source: uniswapSourceName, Raw: res.Body, Elapsed: res.Elapsed}, errors.New("no pools found")
	}

	pool := payload.Data.Pools[0]
	ratio, err := strconv.ParseFloat(pool.Token1Price, 64)
	if err != nil {
		return Quote{Source: uniswapSourceName, Raw: res.Body, Elapsed: res.Elapsed}, fmt.Errorf("parse pool ratio: %w", err)
	}
	if ratio <= 0 {
		return Quote{Source: uniswapSourceName, Raw: res.Body, Elapsed: res.Elapsed}, errors.New("pool returned non-positive ratio")
	}

	volumeUSD := 0.0
	if pool.VolumeUSD != "" {
		if parsed, err := strconv.ParseFloat(pool.VolumeUSD, 64); err == nil {
			volumeUSD = parsed
		}
	}

	if ref.Fallback {
		u.logger.Warn().Str("token", token.Symbol).Float64("eth_usd", ref.ETHUSD).Msg("deriving pool price from fallback reference")
	}

	return Quote{
		Source:    uniswapSourceName,
		PriceUSD:  ratio * ref.ETHUSD,
		Volume24h: volumeUSD,
		Raw:       res.Body,
		Elapsed:   res.Elapsed,
	}, nil
}

var _ SourceAdapter = (*Uniswap)(nil)
