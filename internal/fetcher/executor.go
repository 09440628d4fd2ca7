package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"token-signal-watch/internal/config"
)

// Request describes one fully-formed logical upstream call.
type Request struct {
	Method string
	URL    string
	Body   []byte
}

// Result carries the response payload and the latency of the attempt that
// produced it. On failure it reflects the final attempt.
type Result struct {
	Body    json.RawMessage
	Status  int
	Elapsed time.Duration
}

// Executor performs one logical request with bounded retries and a fixed
// inter-attempt delay. It is the unit all source adapters build on.
type Executor struct {
	client    *http.Client
	retries   int
	delay     time.Duration
	timeout   time.Duration
	userAgent string
	logger    zerolog.Logger
}

// NewExecutor builds an executor from fetcher settings.
func NewExecutor(cfg config.FetcherConfig, logger zerolog.Logger) *Executor {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Executor{
		client:    &http.Client{Timeout: timeout},
		retries:   retries,
		delay:     cfg.RetryDelay,
		timeout:   timeout,
		userAgent: cfg.UserAgent,
		logger:    logger.With().Str("component", "executor").Logger(),
	}
}

// Do runs the request, retrying on transport errors and non-2xx statuses up
// to the configured attempt bound. The returned Result is valid even when
// err is non-nil: Elapsed then measures the final failed attempt, so health
// records always carry a latency. A success after earlier failures reports
// only the successful attempt's latency.
func (e *Executor) Do(ctx context.Context, req Request) (Result, error) {
	var last Result
	var lastErr error

	for attempt := 1; attempt <= e.retries; attempt++ {
		res, err := e.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		last = res
		lastErr = err
		e.logger.Debug().Err(err).Str("url", req.URL).Int("attempt", attempt).Msg("request attempt failed")

		if attempt == e.retries {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(e.delay):
		}
	}
	return last, lastErr
}

func (e *Executor) attempt(ctx context.Context, req Request) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return Result{Elapsed: time.Since(start)}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Result{Elapsed: time.Since(start)}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Status: resp.StatusCode, Elapsed: elapsed}, fmt.Errorf("read response: %w", err)
	}

	result := Result{Body: payload, Status: resp.StatusCode, Elapsed: elapsed}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return result, nil
}
