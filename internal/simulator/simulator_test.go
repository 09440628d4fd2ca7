package simulator

import (
	"math"
	"strings"
	"testing"

	"token-signal-watch/internal/config"
)

func simulatorConfig() config.SimulatorConfig {
	return config.SimulatorConfig{
		BaseFeePercent: 0.1,
		Elasticity:     0.5,
	}
}

func constantVolumes(n int, v float64) []float64 {
	volumes := make([]float64, n)
	for i := range volumes {
		volumes[i] = v
	}
	return volumes
}

func TestSimulateFeeIncrease(t *testing.T) {
	result, err := SimulateFeeChange(constantVolumes(10, 1_000_000), 0.02, simulatorConfig())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	if got := result.BaselineRevenue.InexactFloat64(); math.Abs(got-1000.0) > 1e-6 {
		t.Fatalf("unexpected baseline revenue %f", got)
	}
	// +20% fee sheds 10% of volume at elasticity 0.5: 900k at 0.12%.
	if got := result.SimulatedRevenue.InexactFloat64(); math.Abs(got-1080.0) > 1e-6 {
		t.Fatalf("unexpected simulated revenue %f", got)
	}
	if got := result.Delta.InexactFloat64(); math.Abs(got-80.0) > 1e-6 {
		t.Fatalf("unexpected delta %f", got)
	}
	if !strings.HasPrefix(result.Recommendation, "Positive impact") {
		t.Fatalf("unexpected recommendation %q", result.Recommendation)
	}
}

func TestSimulateFeeDecrease(t *testing.T) {
	result, err := SimulateFeeChange(constantVolumes(10, 1_000_000), -0.02, simulatorConfig())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	// -20% fee attracts 10% more volume: 1.1M at 0.08%.
	if got := result.SimulatedRevenue.InexactFloat64(); math.Abs(got-880.0) > 1e-6 {
		t.Fatalf("unexpected simulated revenue %f", got)
	}
	if result.Delta.Sign() >= 0 {
		t.Fatalf("expected a revenue decrease, got delta %s", result.Delta)
	}
	if !strings.HasPrefix(result.Recommendation, "Negative impact") {
		t.Fatalf("unexpected recommendation %q", result.Recommendation)
	}
}

func TestSimulateNoChange(t *testing.T) {
	result, err := SimulateFeeChange(constantVolumes(5, 500_000), 0, simulatorConfig())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !result.Delta.IsZero() {
		t.Fatalf("a zero fee change must be revenue-neutral, got %s", result.Delta)
	}
	if !strings.HasPrefix(result.Recommendation, "Neutral impact") {
		t.Fatalf("unexpected recommendation %q", result.Recommendation)
	}
}

func TestSimulateRequiresHistory(t *testing.T) {
	if _, err := SimulateFeeChange(nil, 0.02, simulatorConfig()); err == nil {
		t.Fatal("expected an error without volume history")
	}
}

func TestSimulateRequiresPositiveBaseFee(t *testing.T) {
	cfg := simulatorConfig()
	cfg.BaseFeePercent = 0
	if _, err := SimulateFeeChange(constantVolumes(3, 1000), 0.02, cfg); err == nil {
		t.Fatal("expected an error for a non-positive base fee")
	}
}
