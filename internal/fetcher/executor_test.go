package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"token-signal-watch/internal/config"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testExecutor(retries int) *Executor {
	return NewExecutor(config.FetcherConfig{
		MaxRetries:     retries,
		RetryDelay:     time.Millisecond,
		RequestTimeout: time.Second,
		UserAgent:      "test",
	}, noopLogger())
}

func TestExecutorSucceedsFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := testExecutor(3).Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
	if string(res.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", res.Body)
	}
}

func TestExecutorRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			// Slow failures so the final latency is clearly not cumulative.
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := testExecutor(3).Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("third attempt should succeed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if res.Elapsed >= 150*time.Millisecond {
		t.Fatalf("elapsed should cover only the successful attempt, got %s", res.Elapsed)
	}
}

func TestExecutorExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res, err := testExecutor(3).Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	if err == nil {
		t.Fatal("expected an error after the final attempt")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if res.Status != http.StatusBadGateway {
		t.Fatalf("result should carry the final status, got %d", res.Status)
	}
	if res.Elapsed <= 0 {
		t.Fatal("result should carry the final attempt's latency")
	}
}

func TestExecutorTransportError(t *testing.T) {
	// Closed server: every attempt fails at the transport layer.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := testExecutor(2).Do(context.Background(), Request{Method: http.MethodGet, URL: url}); err == nil {
		t.Fatal("expected a transport error")
	}
}
