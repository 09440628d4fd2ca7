package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Health statuses recorded per fetch attempt sequence.
const (
	HealthSuccess = "success"
	HealthError   = "error"
)

// Anomaly types emitted by the anomaly detector.
const (
	AnomalyVolumeSpike = "VolumeSpike"
	AnomalyPriceJump   = "PriceJump"
)

// Token is a registered instrument tracked across sources.
type Token struct {
	ID     int64
	Symbol string
	Name   string
	Source string
}

// PriceObservation is one normalized quote from one source.
// Rows are append-only; the raw upstream payload rides along for audit.
type PriceObservation struct {
	ID        int64
	TokenID   int64
	Source    string
	Timestamp time.Time
	PriceUSD  float64
	Volume24h float64
	Raw       json.RawMessage
}

// HealthRecord captures the outcome of one fetch attempt sequence.
type HealthRecord struct {
	ID             int64
	Source         string
	Timestamp      time.Time
	Status         string
	ResponseTimeMS float64
	ErrorMessage   *string
	Raw            json.RawMessage
}

// IndicatorRow holds one timestamp's indicator panel. Fields are nil when
// the lookback window for that indicator is unmet.
type IndicatorRow struct {
	TokenID     int64
	Timestamp   time.Time
	SMA10       *float64
	SMA30       *float64
	EMA14       *float64
	RSI14       *float64
	VWAP24      *float64
	RealizedVol *float64
}

// ArbitrageEvent records one detected cross-source opportunity.
type ArbitrageEvent struct {
	ID          int64
	TokenID     int64
	Timestamp   time.Time
	BuySource   string
	SellSource  string
	PriceDiff   decimal.Decimal
	PercentDiff decimal.Decimal
	Raw         json.RawMessage
}

// AnomalyRecord records one statistical outlier.
type AnomalyRecord struct {
	ID          int64
	TokenID     int64
	Timestamp   time.Time
	Type        string
	Value       float64
	Description string
	Raw         json.RawMessage
}

// SimulationRecord stores one fee what-if run.
type SimulationRecord struct {
	ID             int64
	TokenID        int64
	Timestamp      time.Time
	Scenario       string
	Baseline       decimal.Decimal
	Simulated      decimal.Decimal
	Delta          decimal.Decimal
	Recommendation string
	Raw            json.RawMessage
}
