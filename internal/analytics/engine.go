package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"token-signal-watch/internal/config"
	"token-signal-watch/internal/storage"
)

// Gateway is the persistence surface one analytics pass needs.
type Gateway interface {
	TokenID(ctx context.Context, symbol string) (int64, error)
	ListPricesSince(ctx context.Context, tokenID int64, since time.Time) ([]storage.PriceObservation, error)
	ReplaceIndicators(ctx context.Context, tokenID int64, rows []storage.IndicatorRow) error
	InsertArbitrage(ctx context.Context, ev storage.ArbitrageEvent) error
	InsertAnomaly(ctx context.Context, rec storage.AnomalyRecord) error
}

// PassResult summarises one token's analytics pass.
type PassResult struct {
	Token         string
	IndicatorRows int
	Opportunities []Opportunity
	Anomalies     []Anomaly
}

// Engine runs the decoupled analytics pass: it reads recent history through
// the gateway, computes indicators and signals, and writes the derived
// records back. Tokens are processed independently and sequentially.
type Engine struct {
	gateway    Gateway
	cfg        config.AnalyticsConfig
	executable map[string]bool
	threshold  decimal.Decimal
	logger     zerolog.Logger
}

// NewEngine builds an analytics engine. executable names the sources whose
// quotes are tradeable and therefore eligible for arbitrage comparison.
func NewEngine(gateway Gateway, cfg config.AnalyticsConfig, executable map[string]bool, logger zerolog.Logger) *Engine {
	return &Engine{
		gateway:    gateway,
		cfg:        cfg,
		executable: executable,
		threshold:  decimal.NewFromFloat(cfg.ArbitrageThreshold),
		logger:     logger.With().Str("component", "analytics").Logger(),
	}
}

// RunPass processes every token. A failure in one token's pass is logged
// and never aborts the others.
func (e *Engine) RunPass(ctx context.Context, tokens []config.TokenConfig) []PassResult {
	results := make([]PassResult, 0, len(tokens))
	for _, token := range tokens {
		result, err := e.processToken(ctx, token)
		if err != nil {
			e.logger.Error().Err(err).Str("token", token.Symbol).Msg("analytics pass failed")
			continue
		}
		results = append(results, result)
	}
	return results
}

func (e *Engine) processToken(ctx context.Context, token config.TokenConfig) (PassResult, error) {
	result := PassResult{Token: token.Symbol}

	tokenID, err := e.gateway.TokenID(ctx, token.Symbol)
	if err != nil {
		return result, err
	}

	since := time.Now().UTC().Add(-e.cfg.Lookback)
	observations, err := e.gateway.ListPricesSince(ctx, tokenID, since)
	if err != nil {
		return result, err
	}
	if len(observations) == 0 {
		e.logger.Debug().Str("token", token.Symbol).Msg("no recent price data, skipping")
		return result, nil
	}

	points := toPoints(observations)

	indicatorPoints := ComputeIndicators(points)
	if len(indicatorPoints) == 0 {
		e.logger.Info().Str("token", token.Symbol).Int("points", len(points)).Msg("insufficient data for indicators")
	} else {
		rows := make([]storage.IndicatorRow, len(indicatorPoints))
		for i, ip := range indicatorPoints {
			rows[i] = storage.IndicatorRow{
				TokenID:     tokenID,
				Timestamp:   ip.Timestamp,
				SMA10:       ip.SMA10,
				SMA30:       ip.SMA30,
				EMA14:       ip.EMA14,
				RSI14:       ip.RSI14,
				VWAP24:      ip.VWAP24,
				RealizedVol: ip.RealizedVol,
			}
		}
		if err := e.gateway.ReplaceIndicators(ctx, tokenID, rows); err != nil {
			return result, fmt.Errorf("replace indicators: %w", err)
		}
		result.IndicatorRows = len(rows)
	}

	now := time.Now().UTC()

	opportunities := DetectArbitrage(latestPerSource(observations), e.executable, e.threshold)
	for _, opp := range opportunities {
		raw, _ := json.Marshal(opp)
		if err := e.gateway.InsertArbitrage(ctx, storage.ArbitrageEvent{
			TokenID:     tokenID,
			Timestamp:   now,
			BuySource:   opp.BuySource,
			SellSource:  opp.SellSource,
			PriceDiff:   opp.PriceDiff,
			PercentDiff: opp.PercentDiff,
			Raw:         raw,
		}); err != nil {
			return result, fmt.Errorf("insert arbitrage: %w", err)
		}
	}
	result.Opportunities = opportunities

	anomalies := DetectAnomalies(points, AnomalyThresholds{
		ZScoreWindow:       e.cfg.ZScoreWindow,
		ZScoreThreshold:    e.cfg.ZScoreThreshold,
		PriceJumpThreshold: e.cfg.PriceJumpThreshold,
	})
	for _, anomaly := range anomalies {
		raw, _ := json.Marshal(anomaly)
		if err := e.gateway.InsertAnomaly(ctx, storage.AnomalyRecord{
			TokenID:     tokenID,
			Timestamp:   now,
			Type:        anomaly.Type,
			Value:       anomaly.Value,
			Description: anomaly.Description,
			Raw:         raw,
		}); err != nil {
			return result, fmt.Errorf("insert anomaly: %w", err)
		}
	}
	result.Anomalies = anomalies

	return result, nil
}

func toPoints(observations []storage.PriceObservation) []Point {
	points := make([]Point, len(observations))
	for i, obs := range observations {
		points[i] = Point{
			Timestamp: obs.Timestamp,
			Price:     obs.PriceUSD,
			Volume:    obs.Volume24h,
		}
	}
	return points
}

// latestPerSource keeps the newest observation per source. Input is
// chronological, so later rows win.
func latestPerSource(observations []storage.PriceObservation) []SourceQuote {
	bySource := make(map[string]SourceQuote)
	for _, obs := range observations {
		bySource[obs.Source] = SourceQuote{
			Source:    obs.Source,
			Price:     obs.PriceUSD,
			Timestamp: obs.Timestamp,
		}
	}
	quotes := make([]SourceQuote, 0, len(bySource))
	for _, q := range bySource {
		quotes = append(quotes, q)
	}
	return quotes
}
