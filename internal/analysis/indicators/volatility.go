package indicators

import (
	"math"

	"chart-patterns/internal/models"
)

// ATR calculates the Average True Range.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Calculate returns the Wilder-smoothed ATR for every bar. Bars before the
// first full period hold the running mean of the true ranges seen so far so
// that callers can size buffers from the very first bar. Bars with non-finite
// prices contribute no true range and carry the previous value forward.
func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < 2 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := make([]float64, n)

	var (
		seen  int
		total float64
		prev  *models.Candle
	)
	for i := 0; i < n; i++ {
		c := candles[i]
		if !c.IsFinite() {
			if i > 0 {
				result[i] = result[i-1]
			}
			continue
		}

		var tr float64
		if prev == nil {
			tr = c.High - c.Low
		} else {
			tr = trueRange(c, *prev)
		}
		prev = &candles[i]

		switch {
		case seen < a.period:
			seen++
			total += tr
			result[i] = total / float64(seen)
		default:
			// Wilder smoothing
			result[i] = (result[i-1]*float64(a.period-1) + tr) / float64(a.period)
		}
	}

	return result, nil
}

// At returns the ATR value at idx, falling back to fallback when the series
// is missing or holds a non-positive value there.
func At(atr []float64, idx int, fallback float64) float64 {
	if idx < 0 || idx >= len(atr) {
		return fallback
	}
	v := atr[idx]
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
