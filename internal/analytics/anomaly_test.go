package analytics

import (
	"math"
	"testing"
	"time"
)

func testThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		ZScoreWindow:       24,
		ZScoreThreshold:    3.0,
		PriceJumpThreshold: 0.05,
	}
}

func seriesWith(n int, price, volume float64) []Point {
	return linearSeries(n, price, 0, volume)
}

func TestDetectAnomaliesVolumeSpike(t *testing.T) {
	points := seriesWith(30, 100, 100)
	points = append(points, Point{
		Timestamp: points[len(points)-1].Timestamp.Add(time.Hour),
		Price:     100,
		Volume:    1000,
	})

	anomalies := DetectAnomalies(points, testThresholds())
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %d", len(anomalies))
	}
	spike := anomalies[0]
	if spike.Type != "VolumeSpike" {
		t.Fatalf("unexpected type %q", spike.Type)
	}
	if spike.Value < 3.0 {
		t.Fatalf("z-score %f should exceed the threshold", spike.Value)
	}
}

func TestDetectAnomaliesPriceJump(t *testing.T) {
	points := seriesWith(30, 100, 100)
	points = append(points, Point{
		Timestamp: points[len(points)-1].Timestamp.Add(time.Hour),
		Price:     106,
		Volume:    100,
	})

	anomalies := DetectAnomalies(points, testThresholds())
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %d", len(anomalies))
	}
	jump := anomalies[0]
	if jump.Type != "PriceJump" {
		t.Fatalf("unexpected type %q", jump.Type)
	}
	if math.Abs(jump.Value-6.0) > 1e-9 {
		t.Fatalf("expected a 6%% move, got %f", jump.Value)
	}
}

func TestDetectAnomaliesNegativeJump(t *testing.T) {
	points := seriesWith(30, 100, 100)
	points = append(points, Point{
		Timestamp: points[len(points)-1].Timestamp.Add(time.Hour),
		Price:     94,
		Volume:    100,
	})

	anomalies := DetectAnomalies(points, testThresholds())
	if len(anomalies) != 1 || anomalies[0].Type != "PriceJump" {
		t.Fatalf("a drop past the threshold must fire, got %+v", anomalies)
	}
	if anomalies[0].Value >= 0 {
		t.Fatalf("value should preserve the sign of the move, got %f", anomalies[0].Value)
	}
}

func TestDetectAnomaliesBothFire(t *testing.T) {
	points := seriesWith(30, 100, 100)
	points = append(points, Point{
		Timestamp: points[len(points)-1].Timestamp.Add(time.Hour),
		Price:     110,
		Volume:    1000,
	})

	anomalies := DetectAnomalies(points, testThresholds())
	if len(anomalies) != 2 {
		t.Fatalf("both checks should fire independently, got %d", len(anomalies))
	}
}

func TestDetectAnomaliesStableSeries(t *testing.T) {
	if anomalies := DetectAnomalies(seriesWith(48, 100, 100), testThresholds()); len(anomalies) != 0 {
		t.Fatalf("a flat series must yield no anomalies, got %+v", anomalies)
	}
}

func TestDetectAnomaliesShortSeries(t *testing.T) {
	if anomalies := DetectAnomalies(seriesWith(1, 100, 100), testThresholds()); len(anomalies) != 0 {
		t.Fatalf("a single point must yield no anomalies, got %+v", anomalies)
	}
}
