package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"token-signal-watch/internal/config"
)

func TestCoingeckoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("unexpected ids %q", got)
		}
		w.Write([]byte(`{"bitcoin":{"usd":64950.2,"usd_24h_vol":31000000000.0}}`))
	}))
	defer srv.Close()

	c := NewCoingecko(config.CoingeckoConfig{BaseURL: srv.URL}, testExecutor(1), noopLogger())
	quote, err := c.Fetch(context.Background(), config.TokenConfig{Symbol: "BTC", CoingeckoID: "bitcoin"}, ReferencePrice{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.Source != "CoinGecko" {
		t.Fatalf("unexpected source %q", quote.Source)
	}
	if quote.PriceUSD != 64950.2 || quote.Volume24h != 31000000000.0 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestCoingeckoFetchMissingEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCoingecko(config.CoingeckoConfig{BaseURL: srv.URL}, testExecutor(1), noopLogger())
	if _, err := c.Fetch(context.Background(), config.TokenConfig{Symbol: "BTC", CoingeckoID: "bitcoin"}, ReferencePrice{}); err == nil {
		t.Fatal("expected an error when the payload lacks the requested id")
	}
}

func TestCoingeckoFetchMissingID(t *testing.T) {
	c := NewCoingecko(config.CoingeckoConfig{}, testExecutor(1), noopLogger())
	if _, err := c.Fetch(context.Background(), config.TokenConfig{Symbol: "XYZ"}, ReferencePrice{}); err == nil {
		t.Fatal("expected an error when the token has no instrument id")
	}
}
