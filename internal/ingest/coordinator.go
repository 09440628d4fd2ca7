package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"token-signal-watch/internal/config"
	"token-signal-watch/internal/fetcher"
	"token-signal-watch/internal/storage"
)

// Gateway is the persistence surface one ingestion cycle needs.
type Gateway interface {
	EnsureToken(ctx context.Context, symbol, name, source string) (int64, error)
	InsertPrice(ctx context.Context, obs storage.PriceObservation) error
	InsertHealth(ctx context.Context, rec storage.HealthRecord) error
}

// Outcome reports one adapter invocation within a cycle.
type Outcome struct {
	Token   string
	Source  string
	Elapsed time.Duration
	Err     error
}

// Coordinator fans one fetch cycle out across all tokens and adapters under
// a global concurrency cap. Adapter failures are isolated: every invocation
// settles and reports its own outcome.
type Coordinator struct {
	adapters  []fetcher.SourceAdapter
	reference fetcher.ReferenceFetcher
	gateway   Gateway
	sem       *semaphore.Weighted
	logger    zerolog.Logger
}

// New constructs an ingestion coordinator. maxConcurrent bounds the total
// in-flight adapter invocations; the permit pool is the sole throttle.
func New(adapters []fetcher.SourceAdapter, reference fetcher.ReferenceFetcher, gateway Gateway, maxConcurrent int64, logger zerolog.Logger) *Coordinator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Coordinator{
		adapters:  adapters,
		reference: reference,
		gateway:   gateway,
		sem:       semaphore.NewWeighted(maxConcurrent),
		logger:    logger.With().Str("component", "coordinator").Logger(),
	}
}

// RunCycle registers tokens, resolves the shared reference price, then
// launches every token x adapter fetch concurrently and joins them with
// all-settled semantics. It returns an error only when persistence cannot
// be reached at cycle start; individual fetch failures land in the
// outcome list and in health records.
func (c *Coordinator) RunCycle(ctx context.Context, tokens []config.TokenConfig) ([]Outcome, error) {
	tokenIDs := make(map[string]int64, len(tokens))
	for _, token := range tokens {
		id, err := c.gateway.EnsureToken(ctx, token.Symbol, token.Name, "config")
		if err != nil {
			return nil, fmt.Errorf("register token %s: %w", token.Symbol, err)
		}
		tokenIDs[token.Symbol] = id
	}

	// Multiple adapters depend on the reference price, so it is resolved
	// once, synchronously, before the fan-out.
	ref := c.fetchReference(ctx)

	outcomes := make([]Outcome, 0, len(tokens)*len(c.adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, token := range tokens {
		for _, adapter := range c.adapters {
			wg.Add(1)
			go func(token config.TokenConfig, adapter fetcher.SourceAdapter) {
				defer wg.Done()
				outcome := c.runAdapter(ctx, token, tokenIDs[token.Symbol], adapter, ref)
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}(token, adapter)
		}
	}
	wg.Wait()

	return outcomes, nil
}

func (c *Coordinator) fetchReference(ctx context.Context) fetcher.ReferencePrice {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fetcher.ReferencePrice{Fallback: true, ETHUSD: 2000.0}
	}
	defer c.sem.Release(1)

	ref, res, err := c.reference.FetchReference(ctx)
	status := storage.HealthSuccess
	var errMsg *string
	if err != nil {
		status = storage.HealthError
		msg := err.Error()
		errMsg = &msg
		c.logger.Warn().Err(err).Float64("fallback_eth_usd", ref.ETHUSD).Msg("reference price lookup failed, using fallback")
	}
	c.writeHealth(ctx, storage.HealthRecord{
		Source:         "Binance-ETH",
		Timestamp:      time.Now().UTC(),
		Status:         status,
		ResponseTimeMS: float64(res.Elapsed) / float64(time.Millisecond),
		ErrorMessage:   errMsg,
		Raw:            res.Body,
	})
	return ref
}

func (c *Coordinator) runAdapter(ctx context.Context, token config.TokenConfig, tokenID int64, adapter fetcher.SourceAdapter, ref fetcher.ReferencePrice) Outcome {
	outcome := Outcome{Token: token.Symbol, Source: adapter.Name()}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		outcome.Err = err
		return outcome
	}
	defer c.sem.Release(1)

	quote, err := adapter.Fetch(ctx, token, ref)
	outcome.Elapsed = quote.Elapsed
	now := time.Now().UTC()

	if err != nil {
		outcome.Err = err
		msg := err.Error()
		c.writeHealth(ctx, storage.HealthRecord{
			Source:         adapter.Name(),
			Timestamp:      now,
			Status:         storage.HealthError,
			ResponseTimeMS: float64(quote.Elapsed) / float64(time.Millisecond),
			ErrorMessage:   &msg,
			Raw:            quote.Raw,
		})
		c.logger.Warn().Err(err).Str("token", token.Symbol).Str("source", adapter.Name()).Msg("adapter fetch failed")
		return outcome
	}

	if insertErr := c.gateway.InsertPrice(ctx, storage.PriceObservation{
		TokenID:   tokenID,
		Source:    adapter.Name(),
		Timestamp: now,
		PriceUSD:  quote.PriceUSD,
		Volume24h: quote.Volume24h,
		Raw:       quote.Raw,
	}); insertErr != nil {
		outcome.Err = insertErr
		msg := insertErr.Error()
		c.writeHealth(ctx, storage.HealthRecord{
			Source:         adapter.Name(),
			Timestamp:      now,
			Status:         storage.HealthError,
			ResponseTimeMS: float64(quote.Elapsed) / float64(time.Millisecond),
			ErrorMessage:   &msg,
			Raw:            quote.Raw,
		})
		return outcome
	}

	c.writeHealth(ctx, storage.HealthRecord{
		Source:         adapter.Name(),
		Timestamp:      now,
		Status:         storage.HealthSuccess,
		ResponseTimeMS: float64(quote.Elapsed) / float64(time.Millisecond),
		Raw:            quote.Raw,
	})
	c.logger.Debug().Str("token", token.Symbol).Str("source", adapter.Name()).Float64("price_usd", quote.PriceUSD).Msg("observation recorded")
	return outcome
}

func (c *Coordinator) writeHealth(ctx context.Context, rec storage.HealthRecord) {
	if err := c.gateway.InsertHealth(ctx, rec); err != nil {
		c.logger.Error().Err(err).Str("source", rec.Source).Msg("failed to record api health")
	}
}
