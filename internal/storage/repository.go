package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrUnknownToken indicates a symbol missing from the registry.
	ErrUnknownToken = errors.New("storage: unknown token symbol")
)

const (
	ensureTokenSQL = `INSERT INTO tokens (symbol, name, source)
    VALUES ($1, $2, $3)
    ON CONFLICT (symbol) DO UPDATE
    SET name = EXCLUDED.name, source = EXCLUDED.source
    RETURNING id;`

	getTokenIDSQL = `SELECT id FROM tokens WHERE symbol = $1;`

	insertPriceSQL = `INSERT INTO prices (token_id, source, timestamp, price_usd, volume_24h, raw_data)
    VALUES ($1, $2, $3, $4, $5, $6);`

	listPricesSinceSQL = `SELECT id, token_id, source, timestamp, price_usd, volume_24h, raw_data
    FROM prices
    WHERE token_id = $1 AND timestamp >= $2
    ORDER BY timestamp ASC;`

	listRecentPricesSQL = `SELECT id, token_id, source, timestamp, price_usd, volume_24h, raw_data
    FROM prices
    WHERE token_id = $1
    ORDER BY timestamp DESC
    LIMIT $2;`

	insertHealthSQL = `INSERT INTO api_health (source, timestamp, status, response_time_ms, error_message, raw_data)
    VALUES ($1, $2, $3, $4, $5, $6);`

	listRecentHealthSQL = `SELECT id, source, timestamp, status, response_time_ms, error_message, raw_data
    FROM api_health
    ORDER BY timestamp DESC
    LIMIT $1;`

	deleteIndicatorsSQL = `DELETE FROM indicators WHERE token_id = $1;`

	insertIndicatorSQL = `INSERT INTO indicators (token_id, timestamp, sma10, sma30, ema, rsi14, vwap24h, realized_vol)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	listIndicatorsSQL = `SELECT token_id, timestamp, sma10, sma30, ema, rsi14, vwap24h, realized_vol
    FROM indicators
    WHERE token_id = $1
    ORDER BY timestamp ASC;`

	insertArbitrageSQL = `INSERT INTO arbitrage (token_id, timestamp, source_a, source_b, price_diff, percent_diff, raw_data)
    VALUES ($1, $2, $3, $4, $5, $6, $7);`

	listRecentArbitrageSQL = `SELECT id, token_id, timestamp, source_a, source_b, price_diff, percent_diff, raw_data
    FROM arbitrage
    ORDER BY timestamp DESC
    LIMIT $1;`

	insertAnomalySQL = `INSERT INTO anomalies (token_id, timestamp, anomaly_type, value, description, raw_data)
    VALUES ($1, $2, $3, $4, $5, $6);`

	listRecentAnomaliesSQL = `SELECT id, token_id, timestamp, anomaly_type, value, description, raw_data
    FROM anomalies
    ORDER BY timestamp DESC
    LIMIT $1;`

	insertSimulationSQL = `INSERT INTO simulations (token_id, timestamp, scenario, baseline, simulated, delta, recommendation, raw_data)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TokenStore manages the instrument registry.
type TokenStore interface {
	EnsureToken(ctx context.Context, symbol, name, source string) (int64, error)
	TokenID(ctx context.Context, symbol string) (int64, error)
}

// PriceStore appends and reads price observations.
type PriceStore interface {
	InsertPrice(ctx context.Context, obs PriceObservation) error
	ListPricesSince(ctx context.Context, tokenID int64, since time.Time) ([]PriceObservation, error)
	ListRecentPrices(ctx context.Context, tokenID int64, limit int) ([]PriceObservation, error)
}

// HealthStore appends fetch outcome audit rows.
type HealthStore interface {
	InsertHealth(ctx context.Context, rec HealthRecord) error
}

// IndicatorStore replaces the derived indicator view per token.
type IndicatorStore interface {
	ReplaceIndicators(ctx context.Context, tokenID int64, rows []IndicatorRow) error
	ListIndicators(ctx context.Context, tokenID int64) ([]IndicatorRow, error)
}

// SignalStore appends detected arbitrage and anomaly rows.
type SignalStore interface {
	InsertArbitrage(ctx context.Context, ev ArbitrageEvent) error
	InsertAnomaly(ctx context.Context, rec AnomalyRecord) error
}

// SimulationStore appends fee what-if results.
type SimulationStore interface {
	InsertSimulation(ctx context.Context, rec SimulationRecord) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to all persisted entities.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureToken registers or refreshes a token and returns its id.
func (s *Store) EnsureToken(ctx context.Context, symbol, name, source string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var id int64
	if scanErr := pool.QueryRow(ctx, ensureTokenSQL, symbol, name, source).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("ensure token %s: %w", symbol, scanErr)
	}
	return id, nil
}

// TokenID resolves a symbol to its registry id.
func (s *Store) TokenID(ctx context.Context, symbol string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var id int64
	scanErr := pool.QueryRow(ctx, getTokenIDSQL, symbol).Scan(&id)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	if scanErr != nil {
		return 0, fmt.Errorf("get token id %s: %w", symbol, scanErr)
	}
	return id, nil
}

// InsertPrice appends one observation. Each insert is its own transaction;
// adapters write disjoint rows so there is no cross-writer contention.
func (s *Store) InsertPrice(ctx context.Context, obs PriceObservation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertPriceSQL,
		obs.TokenID,
		obs.Source,
		obs.Timestamp,
		obs.PriceUSD,
		obs.Volume24h,
		[]byte(obs.Raw),
	)
	if execErr != nil {
		return fmt.Errorf("insert price: %w", execErr)
	}
	return nil
}

// ListPricesSince returns a token's observations from the lookback window,
// oldest first.
func (s *Store) ListPricesSince(ctx context.Context, tokenID int64, since time.Time) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listPricesSinceSQL, tokenID, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices since: %w", queryErr)
	}
	defer rows.Close()
	return scanPrices(rows)
}

// ListRecentPrices returns a token's newest observations, newest first.
func (s *Store) ListRecentPrices(ctx context.Context, tokenID int64, limit int) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentPricesSQL, tokenID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent prices: %w", queryErr)
	}
	defer rows.Close()
	return scanPrices(rows)
}

func scanPrices(rows pgx.Rows) ([]PriceObservation, error) {
	observations := make([]PriceObservation, 0)
	for rows.Next() {
		var obs PriceObservation
		var raw []byte
		if err := rows.Scan(&obs.ID, &obs.TokenID, &obs.Source, &obs.Timestamp, &obs.PriceUSD, &obs.Volume24h, &raw); err != nil {
			return nil, err
		}
		obs.Raw = raw
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

// InsertHealth appends one fetch outcome audit row.
func (s *Store) InsertHealth(ctx context.Context, rec HealthRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	var errMsg interface{}
	if rec.ErrorMessage != nil {
		errMsg = *rec.ErrorMessage
	}
	_, execErr := pool.Exec(ctx, insertHealthSQL,
		rec.Source,
		rec.Timestamp,
		rec.Status,
		rec.ResponseTimeMS,
		errMsg,
		[]byte(rec.Raw),
	)
	if execErr != nil {
		return fmt.Errorf("insert health record: %w", execErr)
	}
	return nil
}

// ListRecentHealth returns the newest health records, newest first.
func (s *Store) ListRecentHealth(ctx context.Context, limit int) ([]HealthRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentHealthSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent health: %w", queryErr)
	}
	defer rows.Close()

	records := make([]HealthRecord, 0, limit)
	for rows.Next() {
		var rec HealthRecord
		var errMsg sql.NullString
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Timestamp, &rec.Status, &rec.ResponseTimeMS, &errMsg, &raw); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.ErrorMessage = &msg
		}
		rec.Raw = raw
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ReplaceIndicators swaps a token's derived indicator rows for a freshly
// computed set. Indicators are a fully recomputed view, so the previous
// rows are deleted rather than merged.
func (s *Store) ReplaceIndicators(ctx context.Context, tokenID int64, indicatorRows []IndicatorRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin indicator replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteIndicatorsSQL, tokenID); err != nil {
		return fmt.Errorf("delete stale indicators: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range indicatorRows {
		batch.Queue(insertIndicatorSQL,
			tokenID,
			row.Timestamp,
			row.SMA10,
			row.SMA30,
			row.EMA14,
			row.RSI14,
			row.VWAP24,
			row.RealizedVol,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert indicators: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit indicator replace: %w", err)
	}
	return nil
}

// ListIndicators returns a token's indicator rows, oldest first.
func (s *Store) ListIndicators(ctx context.Context, tokenID int64) ([]IndicatorRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listIndicatorsSQL, tokenID)
	if queryErr != nil {
		return nil, fmt.Errorf("list indicators: %w", queryErr)
	}
	defer rows.Close()

	result := make([]IndicatorRow, 0)
	for rows.Next() {
		var row IndicatorRow
		if err := rows.Scan(&row.TokenID, &row.Timestamp, &row.SMA10, &row.SMA30, &row.EMA14, &row.RSI14, &row.VWAP24, &row.RealizedVol); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

// InsertArbitrage appends one detected opportunity.
func (s *Store) InsertArbitrage(ctx context.Context, ev ArbitrageEvent) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertArbitrageSQL,
		ev.TokenID,
		ev.Timestamp,
		ev.BuySource,
		ev.SellSource,
		ev.PriceDiff.String(),
		ev.PercentDiff.String(),
		[]byte(ev.Raw),
	)
	if execErr != nil {
		return fmt.Errorf("insert arbitrage: %w", execErr)
	}
	return nil
}

// ListRecentArbitrage returns the newest opportunities, newest first.
func (s *Store) ListRecentArbitrage(ctx context.Context, limit int) ([]ArbitrageEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentArbitrageSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent arbitrage: %w", queryErr)
	}
	defer rows.Close()

	events := make([]ArbitrageEvent, 0, limit)
	for rows.Next() {
		ev, scanErr := scanArbitrage(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanArbitrage(rows pgx.Rows) (ArbitrageEvent, error) {
	var ev ArbitrageEvent
	var priceDiff, percentDiff string
	var raw []byte
	if err := rows.Scan(&ev.ID, &ev.TokenID, &ev.Timestamp, &ev.BuySource, &ev.SellSource, &priceDiff, &percentDiff, &raw); err != nil {
		return ArbitrageEvent{}, err
	}
	var convErr error
	ev.PriceDiff, convErr = parseDecimal(priceDiff)
	if convErr != nil {
		return ArbitrageEvent{}, fmt.Errorf("parse price diff: %w", convErr)
	}
	ev.PercentDiff, convErr = parseDecimal(percentDiff)
	if convErr != nil {
		return ArbitrageEvent{}, fmt.Errorf("parse percent diff: %w", convErr)
	}
	ev.Raw = raw
	return ev, nil
}

func parseDecimal(v string) (decimal.Decimal, error) {
	return decimal.NewFromString(v)
}

// InsertAnomaly appends one detected outlier.
func (s *Store) InsertAnomaly(ctx context.Context, rec AnomalyRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertAnomalySQL,
		rec.TokenID,
		rec.Timestamp,
		rec.Type,
		rec.Value,
		rec.Description,
		[]byte(rec.Raw),
	)
	if execErr != nil {
		return fmt.Errorf("insert anomaly: %w", execErr)
	}
	return nil
}

// ListRecentAnomalies returns the newest anomalies, newest first.
func (s *Store) ListRecentAnomalies(ctx context.Context, limit int) ([]AnomalyRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentAnomaliesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent anomalies: %w", queryErr)
	}
	defer rows.Close()

	records := make([]AnomalyRecord, 0, limit)
	for rows.Next() {
		var rec AnomalyRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.TokenID, &rec.Timestamp, &rec.Type, &rec.Value, &rec.Description, &raw); err != nil {
			return nil, err
		}
		rec.Raw = raw
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// InsertSimulation appends one what-if result.
func (s *Store) InsertSimulation(ctx context.Context, rec SimulationRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertSimulationSQL,
		rec.TokenID,
		rec.Timestamp,
		rec.Scenario,
		rec.Baseline.String(),
		rec.Simulated.String(),
		rec.Delta.String(),
		rec.Recommendation,
		[]byte(rec.Raw),
	)
	if execErr != nil {
		return fmt.Errorf("insert simulation: %w", execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort; releasing the conn drops the lock regardless.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}
