package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"token-signal-watch/internal/simulator"
	"token-signal-watch/internal/storage"
)

// Simulate runs the fee what-if model against a token's recent volume
// history and optionally persists the result.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Token == "" {
		return errors.New("--token is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenID, err := store.TokenID(ctx, opts.Token)
	if err != nil {
		return err
	}

	since := time.Now().UTC().Add(-a.Config.Analytics.Lookback)
	observations, err := store.ListPricesSince(ctx, tokenID, since)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		return fmt.Errorf("no volume history for %s within the lookback window", opts.Token)
	}

	volumes := make([]float64, len(observations))
	for i, obs := range observations {
		volumes[i] = obs.Volume24h
	}

	result, err := simulator.SimulateFeeChange(volumes, opts.FeeChange, a.Config.Simulator)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Scenario: %s\n", result.Scenario)
	fmt.Fprintf(os.Stdout, "  Baseline daily revenue:  $%s\n", result.BaselineRevenue.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  Simulated daily revenue: $%s\n", result.SimulatedRevenue.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  Projected delta:         $%s\n", result.Delta.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  %s\n", result.Recommendation)

	if opts.Persist {
		raw, _ := json.Marshal(result)
		rec := storage.SimulationRecord{
			TokenID:        tokenID,
			Timestamp:      time.Now().UTC(),
			Scenario:       result.Scenario,
			Baseline:       result.BaselineRevenue,
			Simulated:      result.SimulatedRevenue,
			Delta:          result.Delta,
			Recommendation: result.Recommendation,
			Raw:            raw,
		}
		if err := store.InsertSimulation(ctx, rec); err != nil {
			return err
		}
		a.Logger.Info().Str("token", opts.Token).Msg("simulation result persisted")
	}

	return nil
}
