package storage

import (
	"context"
	"fmt"
)

// Schema DDL. Statements are idempotent so migrate can run at every startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
        id BIGSERIAL PRIMARY KEY,
        symbol TEXT UNIQUE NOT NULL,
        name TEXT,
        source TEXT NOT NULL
    );`,

	`CREATE TABLE IF NOT EXISTS prices (
        id BIGSERIAL PRIMARY KEY,
        token_id BIGINT NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
        source TEXT NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
        price_usd DOUBLE PRECISION,
        volume_24h DOUBLE PRECISION,
        raw_data JSONB
    );`,
	`CREATE INDEX IF NOT EXISTS idx_prices_token_time ON prices (token_id, timestamp);`,

	`CREATE TABLE IF NOT EXISTS indicators (
        id BIGSERIAL PRIMARY KEY,
        token_id BIGINT NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
        timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
        sma10 DOUBLE PRECISION,
        sma30 DOUBLE PRECISION,
        ema DOUBLE PRECISION,
        rsi14 DOUBLE PRECISION,
        vwap24h DOUBLE PRECISION,
        realized_vol DOUBLE PRECISION,
        raw_data JSONB
    );`,
	`CREATE INDEX IF NOT EXISTS idx_indicators_token_time ON indicators (token_id, timestamp);`,

	`CREATE TABLE IF NOT EXISTS arbitrage (
        id BIGSERIAL PRIMARY KEY,
        token_id BIGINT NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
        timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
        source_a TEXT,
        source_b TEXT,
        price_diff NUMERIC,
        percent_diff NUMERIC,
        raw_data JSONB
    );`,
	`CREATE INDEX IF NOT EXISTS idx_arbitrage_token_time ON arbitrage (token_id, timestamp);`,

	`CREATE TABLE IF NOT EXISTS anomalies (
        id BIGSERIAL PRIMARY KEY,
        token_id BIGINT NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
        timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
        anomaly_type TEXT,
        value DOUBLE PRECISION,
        description TEXT,
        raw_data JSONB
    );`,
	`CREATE INDEX IF NOT EXISTS idx_anomalies_token_time ON anomalies (token_id, timestamp);`,

	`CREATE TABLE IF NOT EXISTS api_health (
        id BIGSERIAL PRIMARY KEY,
        source TEXT NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
        status TEXT,
        response_time_ms DOUBLE PRECISION,
        error_message TEXT,
        raw_data JSONB
    );`,
	`CREATE INDEX IF NOT EXISTS idx_api_health_source_time ON api_health (source, timestamp);`,

	`CREATE TABLE IF NOT EXISTS simulations (
        id BIGSERIAL PRIMARY KEY,
        token_id BIGINT NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
        timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
        scenario TEXT,
        baseline NUMERIC,
        simulated NUMERIC,
        delta NUMERIC,
        recommendation TEXT,
        raw_data JSONB
    );`,
	`CREATE INDEX IF NOT EXISTS idx_simulations_token_time ON simulations (token_id, timestamp);`,
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range migrations {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("apply migration: %w", execErr)
		}
	}
	return nil
}
