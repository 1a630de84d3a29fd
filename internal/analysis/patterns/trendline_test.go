package patterns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-patterns/internal/analysis"
)

func TestFitPoints_ExactLine(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{10, 12, 14, 16, 18}

	line, ok := FitPoints(xs, ys)
	require.True(t, ok)
	assert.InDelta(t, 2.0, line.Slope, 1e-9)
	assert.InDelta(t, 10.0, line.Intercept, 1e-9)
	assert.InDelta(t, 1.0, line.RSquared, 1e-9)
	assert.InDelta(t, 20.0, line.ValueAt(5), 1e-9)
}

func TestFitPoints_FlatSeriesFitsPerfectly(t *testing.T) {
	line, ok := FitPoints([]float64{1, 2, 3}, []float64{50, 50, 50})
	require.True(t, ok)
	assert.Equal(t, 0.0, line.Slope)
	assert.Equal(t, 1.0, line.RSquared)
}

func TestFitPoints_DegenerateInput(t *testing.T) {
	_, ok := FitPoints([]float64{1}, []float64{5})
	assert.False(t, ok, "one point")

	_, ok = FitPoints([]float64{3, 3, 3}, []float64{1, 2, 3})
	assert.False(t, ok, "no distinct x")

	_, ok = FitPoints([]float64{1, 2, 3}, []float64{math.NaN(), 2, math.Inf(1)})
	assert.False(t, ok, "one finite point left")
}

func TestFitPoints_DropsNonFinite(t *testing.T) {
	line, ok := FitPoints([]float64{0, 1, 2, 3}, []float64{1, math.NaN(), 3, 4})
	require.True(t, ok)
	assert.InDelta(t, 1.0, line.Slope, 1e-9)
	assert.InDelta(t, 1.0, line.RSquared, 1e-9)
}

func TestFitPivots_RecordsTouches(t *testing.T) {
	pivots := []analysis.Pivot{
		{Index: 4, Price: 100},
		{Index: 10, Price: 103},
		{Index: 16, Price: 106},
	}

	line, ok := FitPivots(pivots)
	require.True(t, ok)
	assert.InDelta(t, 0.5, line.Slope, 1e-9)
	assert.Equal(t, []int{4, 10, 16}, line.TouchIndices)
}

func TestAcceptLine(t *testing.T) {
	line, ok := FitPoints([]float64{0, 1, 2, 3}, []float64{1, 3, 1, 3})
	require.True(t, ok)
	assert.Less(t, line.RSquared, 0.5)

	assert.False(t, AcceptLine(line, 0.5))
	assert.True(t, AcceptLine(line, 0))

	_, ok = fitAccepted([]analysis.Pivot{{Index: 0, Price: 1}, {Index: 1, Price: 3}, {Index: 2, Price: 1}, {Index: 3, Price: 3}}, 0.5)
	assert.False(t, ok)
}

func TestIntersect(t *testing.T) {
	upper := analysis.TrendLine{Slope: -0.5, Intercept: 120}
	lower := analysis.TrendLine{Slope: -0.2, Intercept: 100}

	x, ok := analysis.Intersect(upper, lower)
	require.True(t, ok)
	assert.InDelta(t, 200.0/3, x, 1e-9)

	_, ok = analysis.Intersect(upper, analysis.TrendLine{Slope: -0.5, Intercept: 90})
	assert.False(t, ok, "parallel lines never meet")
}
