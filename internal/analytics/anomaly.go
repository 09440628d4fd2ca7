package analytics

import (
	"fmt"
	"math"
)

// Anomaly is one statistical outlier found in the most recent window.
type Anomaly struct {
	Type        string  `json:"anomaly_type"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// AnomalyThresholds parameterise both checks.
type AnomalyThresholds struct {
	ZScoreWindow       int
	ZScoreThreshold    float64
	PriceJumpThreshold float64
}

const (
	anomalyVolumeSpike = "VolumeSpike"
	anomalyPriceJump   = "PriceJump"
)

// DetectAnomalies runs both checks over a chronological series. The checks
// are independent: insufficient history for one silently skips that check
// only, and both may fire in the same pass.
func DetectAnomalies(points []Point, thresholds AnomalyThresholds) []Anomaly {
	var anomalies []Anomaly

	if spike, ok := detectVolumeSpike(points, thresholds); ok {
		anomalies = append(anomalies, spike)
	}
	if jump, ok := detectPriceJump(points, thresholds); ok {
		anomalies = append(anomalies, jump)
	}
	return anomalies
}

// detectVolumeSpike z-scores the latest 24h volume against the trailing
// window. A zero standard deviation (flat volume) never fires.
func detectVolumeSpike(points []Point, thresholds AnomalyThresholds) (Anomaly, bool) {
	window := thresholds.ZScoreWindow
	if window < 2 || len(points) < window {
		return Anomaly{}, false
	}

	tail := points[len(points)-window:]
	var sum float64
	for _, p := range tail {
		sum += p.Volume
	}
	mean := sum / float64(window)

	var sq float64
	for _, p := range tail {
		d := p.Volume - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(window-1))
	if std <= 0 {
		return Anomaly{}, false
	}

	latest := tail[len(tail)-1].Volume
	z := (latest - mean) / std
	if math.Abs(z) < thresholds.ZScoreThreshold {
		return Anomaly{}, false
	}

	return Anomaly{
		Type:  anomalyVolumeSpike,
		Value: z,
		Description: fmt.Sprintf("volume z-score %.2f exceeds threshold %.1f (current volume %.2f)",
			z, thresholds.ZScoreThreshold, latest),
	}, true
}

// detectPriceJump compares the last two consecutive points.
func detectPriceJump(points []Point, thresholds AnomalyThresholds) (Anomaly, bool) {
	if len(points) < 2 {
		return Anomaly{}, false
	}

	prev := points[len(points)-2].Price
	last := points[len(points)-1].Price
	if prev == 0 {
		return Anomaly{}, false
	}

	change := (last - prev) / prev
	if math.Abs(change) < thresholds.PriceJumpThreshold {
		return Anomaly{}, false
	}

	return Anomaly{
		Type:  anomalyPriceJump,
		Value: change * 100,
		Description: fmt.Sprintf("price changed %.2f%%, exceeding threshold %.2f%%",
			change*100, thresholds.PriceJumpThreshold*100),
	}, true
}
