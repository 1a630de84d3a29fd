package patterns

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"chart-patterns/internal/analysis"
)

// flatEpsilon bounds the relative total variance below which a series is
// treated as perfectly flat.
const flatEpsilon = 1e-12

// FitPoints fits an ordinary least squares line through the finite (x, y)
// pairs. It needs at least two points with distinct x.
func FitPoints(xs, ys []float64) (analysis.TrendLine, bool) {
	fx := make([]float64, 0, len(xs))
	fy := make([]float64, 0, len(ys))
	for i := range xs {
		if i >= len(ys) || !finite(xs[i]) || !finite(ys[i]) {
			continue
		}
		fx = append(fx, xs[i])
		fy = append(fy, ys[i])
	}
	if len(fx) < 2 {
		return analysis.TrendLine{}, false
	}
	distinct := false
	for _, x := range fx[1:] {
		if x != fx[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return analysis.TrendLine{}, false
	}

	alpha, beta := stat.LinearRegression(fx, fy, nil, false)
	return analysis.TrendLine{
		Slope:     beta,
		Intercept: alpha,
		RSquared:  rSquared(fx, fy, alpha, beta),
	}, true
}

// FitPivots fits a line through pivot (index, price) pairs and records the
// pivot indices as touches.
func FitPivots(pivots []analysis.Pivot) (analysis.TrendLine, bool) {
	xs := make([]float64, len(pivots))
	ys := make([]float64, len(pivots))
	for i, p := range pivots {
		xs[i] = float64(p.Index)
		ys[i] = p.Price
	}
	line, ok := FitPoints(xs, ys)
	if !ok {
		return line, false
	}
	for _, p := range pivots {
		if finite(p.Price) {
			line.TouchIndices = append(line.TouchIndices, p.Index)
		}
	}
	return line, true
}

// AcceptLine reports whether the line's fit clears the acceptance threshold.
// Lines below it are dropped, not down-weighted.
func AcceptLine(line analysis.TrendLine, minR2 float64) bool {
	return line.RSquared >= minR2
}

// fitAccepted fits pivots and applies the acceptance threshold.
func fitAccepted(pivots []analysis.Pivot, minR2 float64) (analysis.TrendLine, bool) {
	line, ok := FitPivots(pivots)
	if !ok || !AcceptLine(line, minR2) {
		return analysis.TrendLine{}, false
	}
	return line, true
}

func rSquared(xs, ys []float64, alpha, beta float64) float64 {
	mean := stat.Mean(ys, nil)
	var ssTot float64
	for _, y := range ys {
		d := y - mean
		ssTot += d * d
	}
	if ssTot <= flatEpsilon*(mean*mean+1)*float64(len(ys)) {
		return 1
	}
	return analysis.Clamp01(stat.RSquared(xs, ys, nil, alpha, beta))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
