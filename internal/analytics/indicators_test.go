package analytics

import (
	"math"
	"testing"
	"time"
)

func linearSeries(n int, start, step, volume float64) []Point {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     start + step*float64(i),
			Volume:    volume,
		}
	}
	return points
}

func TestComputeIndicatorsShortSeries(t *testing.T) {
	if rows := ComputeIndicators(linearSeries(29, 100, 1, 10)); rows != nil {
		t.Fatalf("expected no rows for a 29-point series, got %d", len(rows))
	}
}

func TestComputeIndicatorsLinearSeries(t *testing.T) {
	points := linearSeries(40, 100, 1, 10)
	rows := ComputeIndicators(points)
	if len(rows) == 0 {
		t.Fatal("expected indicator rows for a 40-point series")
	}

	// Rows before the shortest window (10) carry no defined indicator and
	// are dropped: 40 - 9 = 31 remain.
	if len(rows) != 31 {
		t.Fatalf("expected 31 rows, got %d", len(rows))
	}

	last := rows[len(rows)-1]
	if !last.Timestamp.Equal(points[len(points)-1].Timestamp) {
		t.Fatal("rows must carry observation timestamps")
	}

	// Prices 130..139 for the final short window.
	if last.SMA10 == nil || math.Abs(*last.SMA10-134.5) > 1e-9 {
		t.Fatalf("unexpected SMA10 %v", last.SMA10)
	}
	// Prices 110..139 for the final long window.
	if last.SMA30 == nil || math.Abs(*last.SMA30-124.5) > 1e-9 {
		t.Fatalf("unexpected SMA30 %v", last.SMA30)
	}
	// A strictly rising series pins Wilder RSI at 100.
	if last.RSI14 == nil || math.Abs(*last.RSI14-100.0) > 1e-9 {
		t.Fatalf("unexpected RSI14 %v", last.RSI14)
	}
	if last.EMA14 == nil || *last.EMA14 <= *last.SMA30 {
		t.Fatalf("EMA should trail the latest price above the long mean, got %v", last.EMA14)
	}
	// Constant volume makes VWAP the plain mean of the trailing 24 prices.
	if last.VWAP24 == nil || math.Abs(*last.VWAP24-127.5) > 1e-9 {
		t.Fatalf("unexpected VWAP24 %v", last.VWAP24)
	}
	if last.RealizedVol == nil || *last.RealizedVol <= 0 {
		t.Fatalf("unexpected realized volatility %v", last.RealizedVol)
	}
}

func TestComputeIndicatorsConstantSeries(t *testing.T) {
	rows := ComputeIndicators(linearSeries(35, 100, 0, 10))
	if len(rows) == 0 {
		t.Fatal("expected rows")
	}
	last := rows[len(rows)-1]
	if last.RSI14 == nil || *last.RSI14 != 50.0 {
		t.Fatalf("flat series should yield neutral RSI, got %v", last.RSI14)
	}
	if last.RealizedVol == nil || *last.RealizedVol != 0 {
		t.Fatalf("flat series should yield zero volatility, got %v", last.RealizedVol)
	}
}

func TestComputeIndicatorsZeroVolume(t *testing.T) {
	rows := ComputeIndicators(linearSeries(35, 100, 1, 0))
	for _, row := range rows {
		if row.VWAP24 != nil {
			t.Fatal("VWAP must be undefined when the trailing volume sum is zero")
		}
	}
}

func TestComputeIndicatorsDeterministic(t *testing.T) {
	points := linearSeries(50, 200, 0.5, 7)
	first := ComputeIndicators(points)
	second := ComputeIndicators(points)
	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !indicatorRowsEqual(first[i], second[i]) {
			t.Fatalf("row %d differs between runs", i)
		}
	}
}

func indicatorRowsEqual(a, b IndicatorPoint) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		floatPtrEqual(a.SMA10, b.SMA10) &&
		floatPtrEqual(a.SMA30, b.SMA30) &&
		floatPtrEqual(a.EMA14, b.EMA14) &&
		floatPtrEqual(a.RSI14, b.RSI14) &&
		floatPtrEqual(a.VWAP24, b.VWAP24) &&
		floatPtrEqual(a.RealizedVol, b.RealizedVol)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
