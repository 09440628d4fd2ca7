package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNotification() Notification {
	return Notification{
		Token:       "BTC",
		Timestamp:   time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		BuySource:   "Binance",
		SellSource:  "UniswapV3",
		BuyPrice:    decimal.NewFromFloat(64000),
		SellPrice:   decimal.NewFromFloat(64500),
		PercentDiff: decimal.NewFromFloat(0.781),
		Channels:    []string{"telegram"},
	}
}

func TestTelegramNotify(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "12345", srv.URL, time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotPayload["chat_id"] != "12345" {
		t.Fatalf("unexpected chat id %q", gotPayload["chat_id"])
	}
	text := gotPayload["text"]
	for _, want := range []string{"BTC", "Buy at Binance", "Sell at UniswapV3", "0.781%"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}
}

func TestTelegramNotifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "12345", srv.URL, time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("expected an error when the API reports ok=false")
	}
}

func TestTelegramNotifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "12345", srv.URL, time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}
