package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"token-signal-watch/internal/config"
)

const wethAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

func TestUniswapFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("decode query: %v", err)
		}
		if !strings.Contains(req.Query, strings.ToLower(wethAddress)) {
			t.Errorf("query should embed the lowercased pool address: %s", req.Query)
		}
		w.Write([]byte(`{"data":{"pools":[{"token0Price":"20.0","token1Price":"0.05","volumeUSD":"123456.78"}]}}`))
	}))
	defer srv.Close()

	u := NewUniswap(config.UniswapConfig{SubgraphURL: srv.URL}, testExecutor(1), noopLogger())
	quote, err := u.Fetch(context.Background(),
		config.TokenConfig{Symbol: "ETH", UniswapID: wethAddress},
		ReferencePrice{ETHUSD: 2000.0})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.Source != "UniswapV3" {
		t.Fatalf("unexpected source %q", quote.Source)
	}
	if math.Abs(quote.PriceUSD-100.0) > 1e-9 {
		t.Fatalf("expected ratio*reference = 100, got %f", quote.PriceUSD)
	}
	if quote.Volume24h != 123456.78 {
		t.Fatalf("unexpected volume %f", quote.Volume24h)
	}
}

func TestUniswapFetchNoPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"pools":[]}}`))
	}))
	defer srv.Close()

	u := NewUniswap(config.UniswapConfig{SubgraphURL: srv.URL}, testExecutor(1), noopLogger())
	_, err := u.Fetch(context.Background(),
		config.TokenConfig{Symbol: "ETH", UniswapID: wethAddress},
		ReferencePrice{ETHUSD: 2000.0})
	if err == nil {
		t.Fatal("expected an error when the subgraph returns no pools")
	}
}

func TestUniswapFetchMalformedAddress(t *testing.T) {
	u := NewUniswap(config.UniswapConfig{SubgraphURL: "http://unused"}, testExecutor(1), noopLogger())
	_, err := u.Fetch(context.Background(),
		config.TokenConfig{Symbol: "ETH", UniswapID: "not-an-address"},
		ReferencePrice{ETHUSD: 2000.0})
	if err == nil {
		t.Fatal("expected an error for a malformed contract address")
	}
}
