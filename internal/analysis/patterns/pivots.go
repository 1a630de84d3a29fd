package patterns

import (
	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// ExtractPivots identifies swing highs and lows. Bar i is a swing high when its
// high is strictly above the highs of the depth bars on each side, and a swing
// low symmetrically on lows. The stored price is the bar's close. A bar that
// qualifies as both is reported as a high only.
func ExtractPivots(candles []models.Candle, depth int) []analysis.Pivot {
	n := len(candles)
	if depth < 1 || n < 2*depth+1 {
		return nil
	}

	pivots := make([]analysis.Pivot, 0, n/depth)
	for i := depth; i < n-1-depth; i++ {
		if !candles[i].IsFinite() {
			continue
		}
		switch {
		case isSwingHigh(candles, i, depth):
			pivots = append(pivots, analysis.Pivot{Index: i, Price: candles[i].Close, Kind: analysis.PivotHigh})
		case isSwingLow(candles, i, depth):
			pivots = append(pivots, analysis.Pivot{Index: i, Price: candles[i].Close, Kind: analysis.PivotLow})
		}
	}

	return pivots
}

// Comparisons against a NaN neighbour are false, so a non-finite neighbour
// never lets a bar through.
func isSwingHigh(candles []models.Candle, i, depth int) bool {
	h := candles[i].High
	for k := 1; k <= depth; k++ {
		if !(h > candles[i-k].High && h > candles[i+k].High) {
			return false
		}
	}
	return true
}

func isSwingLow(candles []models.Candle, i, depth int) bool {
	l := candles[i].Low
	for k := 1; k <= depth; k++ {
		if !(l < candles[i-k].Low && l < candles[i+k].Low) {
			return false
		}
	}
	return true
}

// splitPivots returns the swing highs and swing lows of pivots.
func splitPivots(pivots []analysis.Pivot) (highs, lows []analysis.Pivot) {
	for _, p := range pivots {
		if p.Kind == analysis.PivotHigh {
			highs = append(highs, p)
		} else {
			lows = append(lows, p)
		}
	}
	return highs, lows
}

// pivotsBetween returns the pivots with start <= index <= end.
func pivotsBetween(pivots []analysis.Pivot, start, end int) []analysis.Pivot {
	var out []analysis.Pivot
	for _, p := range pivots {
		if p.Index < start {
			continue
		}
		if p.Index > end {
			break
		}
		out = append(out, p)
	}
	return out
}
