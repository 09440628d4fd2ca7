package simulator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"token-signal-watch/internal/config"
)

// Result is one fee what-if outcome. Revenue figures are daily, in USD.
type Result struct {
	Scenario         string          `json:"scenario"`
	BaselineRevenue  decimal.Decimal `json:"baseline_revenue"`
	SimulatedRevenue decimal.Decimal `json:"simulated_revenue"`
	Delta            decimal.Decimal `json:"delta"`
	Recommendation   string          `json:"recommendation"`
	AvgDailyVolume   decimal.Decimal `json:"avg_daily_volume"`
	ProposedChange   float64         `json:"proposed_fee_change_percent"`
}

var decimalHundred = decimal.NewFromInt(100)

// SimulateFeeChange models the revenue impact of moving the trading fee by
// proposedChangePct percentage points. Volume responds linearly through the
// configured elasticity: raising fees sheds volume, cutting them attracts it.
func SimulateFeeChange(volumes []float64, proposedChangePct float64, cfg config.SimulatorConfig) (Result, error) {
	if len(volumes) == 0 {
		return Result{}, errors.New("no volume history to simulate against")
	}
	if cfg.BaseFeePercent <= 0 {
		return Result{}, errors.New("base fee percent must be positive")
	}

	var sum float64
	for _, v := range volumes {
		sum += v
	}
	avgVolume := decimal.NewFromFloat(sum / float64(len(volumes)))

	baseFeePct := decimal.NewFromFloat(cfg.BaseFeePercent)
	baseline := avgVolume.Mul(baseFeePct.Div(decimalHundred))

	feeChangeRatio := decimal.NewFromFloat(proposedChangePct).Div(baseFeePct)
	volumeChangeRatio := feeChangeRatio.Mul(decimal.NewFromFloat(cfg.Elasticity)).Neg()
	simulatedVolume := avgVolume.Mul(decimal.NewFromInt(1).Add(volumeChangeRatio))

	newFeePct := baseFeePct.Add(decimal.NewFromFloat(proposedChangePct))
	simulated := simulatedVolume.Mul(newFeePct.Div(decimalHundred))

	delta := simulated.Sub(baseline)

	var recommendation string
	switch delta.Sign() {
	case 1:
		recommendation = fmt.Sprintf("Positive impact: projected daily revenue increase of $%s.", delta.StringFixed(2))
	case -1:
		recommendation = fmt.Sprintf("Negative impact: projected daily revenue decrease of $%s.", delta.Abs().StringFixed(2))
	default:
		recommendation = "Neutral impact: no significant revenue change projected."
	}

	return Result{
		Scenario:         fmt.Sprintf("fee change from %s%% to %s%%", baseFeePct.StringFixed(3), newFeePct.StringFixed(3)),
		BaselineRevenue:  baseline,
		SimulatedRevenue: simulated,
		Delta:            delta,
		Recommendation:   recommendation,
		AvgDailyVolume:   avgVolume,
		ProposedChange:   proposedChangePct,
	}, nil
}
