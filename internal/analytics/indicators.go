package analytics

import (
	"math"
	"time"
)

// Indicator window sizes, in periods of the ingested series.
const (
	smaShortWindow = 10
	smaLongWindow  = 30
	emaWindow      = 14
	rsiWindow      = 14
	vwapWindow     = 24
	volWindow      = 30

	// minIndicatorPoints gates the whole panel: shorter series produce
	// no rows at all.
	minIndicatorPoints = 30

	annualisationDays = 365
)

// Point is one time-ordered price/volume sample.
type Point struct {
	Timestamp time.Time
	Price     float64
	Volume    float64
}

// IndicatorPoint carries the indicator panel for one timestamp. Fields are
// nil while their lookback window is unmet.
type IndicatorPoint struct {
	Timestamp   time.Time
	SMA10       *float64
	SMA30       *float64
	EMA14       *float64
	RSI14       *float64
	VWAP24      *float64
	RealizedVol *float64
}

// ComputeIndicators evaluates the indicator panel over a chronological
// series. Fewer than 30 points yields an empty result. Leading rows where
// every core indicator (both SMAs, EMA, RSI) is still undefined are
// dropped; such rows carry no signal and are never persisted.
func ComputeIndicators(points []Point) []IndicatorPoint {
	if len(points) < minIndicatorPoints {
		return nil
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	sma10 := rollingMean(prices, smaShortWindow)
	sma30 := rollingMean(prices, smaLongWindow)
	ema14 := exponentialMean(prices, emaWindow)
	rsi14 := relativeStrength(prices, rsiWindow)
	vwap := rollingVWAP(points, vwapWindow)
	vol := realizedVolatility(prices, volWindow)

	rows := make([]IndicatorPoint, 0, len(points))
	for i := range points {
		row := IndicatorPoint{
			Timestamp:   points[i].Timestamp,
			SMA10:       sma10[i],
			SMA30:       sma30[i],
			EMA14:       ema14[i],
			RSI14:       rsi14[i],
			VWAP24:      vwap[i],
			RealizedVol: vol[i],
		}
		if row.SMA10 == nil && row.SMA30 == nil && row.EMA14 == nil && row.RSI14 == nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// rollingMean is the trailing simple moving average; nil until the window
// is filled.
func rollingMean(prices []float64, window int) []*float64 {
	out := make([]*float64, len(prices))
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= window {
			sum -= prices[i-window]
		}
		if i >= window-1 {
			mean := sum / float64(window)
			out[i] = &mean
		}
	}
	return out
}

// exponentialMean seeds with the simple mean of the first window, then
// applies the standard span smoothing factor 2/(window+1).
func exponentialMean(prices []float64, window int) []*float64 {
	out := make([]*float64, len(prices))
	if len(prices) < window {
		return out
	}

	alpha := 2.0 / (float64(window) + 1.0)

	var seed float64
	for _, p := range prices[:window] {
		seed += p
	}
	seed /= float64(window)

	ema := seed
	out[window-1] = cloneFloat(ema)
	for i := window; i < len(prices); i++ {
		ema = alpha*prices[i] + (1-alpha)*ema
		out[i] = cloneFloat(ema)
	}
	return out
}

// relativeStrength is the Wilder RSI: seed averages over the first window
// of deltas, then recursive smoothing with factor 1/window.
func relativeStrength(prices []float64, window int) []*float64 {
	out := make([]*float64, len(prices))
	if len(prices) <= window {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= window; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(window)
	avgLoss := lossSum / float64(window)
	out[window] = cloneFloat(rsiValue(avgGain, avgLoss))

	for i := window + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(window-1) + gain) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + loss) / float64(window)
		out[i] = cloneFloat(rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// rollingVWAP is volume-weighted over a trailing window, defined from the
// first point onward; nil when the trailing volume sum is zero.
func rollingVWAP(points []Point, window int) []*float64 {
	out := make([]*float64, len(points))
	var pvSum, vSum float64
	for i, p := range points {
		pvSum += p.Price * p.Volume
		vSum += p.Volume
		if i >= window {
			pvSum -= points[i-window].Price * points[i-window].Volume
			vSum -= points[i-window].Volume
		}
		if vSum > 0 {
			vwap := pvSum / vSum
			out[i] = &vwap
		}
	}
	return out
}

// realizedVolatility is the trailing sample standard deviation of log
// returns over the window, annualised by sqrt(365). Defined once two
// returns are available.
func realizedVolatility(prices []float64, window int) []*float64 {
	out := make([]*float64, len(prices))

	returns := make([]float64, len(prices))
	valid := make([]bool, len(prices))
	for i := 1; i < len(prices); i++ {
		if prices[i] > 0 && prices[i-1] > 0 {
			returns[i] = math.Log(prices[i] / prices[i-1])
			valid[i] = true
		}
	}

	for i := range prices {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		var n int
		for j := lo; j <= i; j++ {
			if valid[j] {
				sum += returns[j]
				n++
			}
		}
		if n < 2 {
			continue
		}
		mean := sum / float64(n)
		var sq float64
		for j := lo; j <= i; j++ {
			if valid[j] {
				d := returns[j] - mean
				sq += d * d
			}
		}
		std := math.Sqrt(sq / float64(n-1))
		annualised := std * math.Sqrt(annualisationDays)
		out[i] = &annualised
	}
	return out
}

func cloneFloat(v float64) *float64 {
	return &v
}
