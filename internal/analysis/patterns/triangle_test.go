package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

func ascendingTriangleCandles() []models.Candle {
	flat := func(float64) float64 { return 110 }
	rising := func(x float64) float64 { return 90 + 0.3*x }
	return pathCandles(48, 0.5, zigzag(47, flat, rising)...)
}

func TestTriangle_Ascending(t *testing.T) {
	opts := withFamilies(ModeCompleted, analysis.TriangleAscending, analysis.TriangleDescending, analysis.TriangleSymmetrical)
	res := runDetector(t, opts, ascendingTriangleCandles())

	require.Len(t, res.Patterns, 1, "overlapping windows collapse to one triangle")
	c := res.Patterns[0]
	assert.Equal(t, analysis.TriangleAscending, c.Type)
	assert.Equal(t, analysis.PatternBullish, c.Direction)
	assert.NotEqual(t, analysis.StatusInvalidated, c.Status)
	assert.Nil(t, c.Breakout)

	g, ok := c.Geometry.(analysis.EnvelopeGeometry)
	require.True(t, ok)
	assert.Equal(t, 0.0, g.Upper.Slope)
	assert.InDelta(t, 110.0, g.Upper.Intercept, 1e-9)
	assert.InDelta(t, 0.3, g.Lower.Slope, 1e-9)
	assert.Less(t, g.SpreadEnd, g.SpreadStart)

	require.NotNil(t, c.ApexIndex)
	assert.InDelta(t, 200.0/3, *c.ApexIndex, 1e-6)
	require.NotNil(t, c.BreakoutTarget)
	assert.Greater(t, *c.BreakoutTarget, 110.0)
	assert.Greater(t, res.Diagnostics.WindowsScanned, 0)
}

func TestTriangle_DescendingMirror(t *testing.T) {
	falling := func(x float64) float64 { return 110 - 0.3*x }
	flat := func(float64) float64 { return 90 }
	candles := pathCandles(48, 0.5, zigzag(47, falling, flat)...)

	res := runDetector(t, withFamilies(ModeCompleted, analysis.TriangleAscending, analysis.TriangleDescending), candles)

	require.NotEmpty(t, res.Patterns)
	for _, c := range res.Patterns {
		assert.Equal(t, analysis.TriangleDescending, c.Type)
		assert.Equal(t, analysis.PatternBearish, c.Direction)
	}
}

func TestTriangle_ParallelChannelRejected(t *testing.T) {
	upper := func(x float64) float64 { return 110 + 0.3*x }
	lower := func(x float64) float64 { return 90 + 0.3*x }
	candles := pathCandles(48, 0.5, zigzag(47, upper, lower)...)

	res := runDetector(t, withFamilies(ModeCompleted, analysis.TriangleAscending, analysis.TriangleDescending, analysis.TriangleSymmetrical), candles)

	assert.Empty(t, res.Patterns)
}

func TestTriangle_ExpiresPastApex(t *testing.T) {
	// Closes ride the middle of the envelope until well past the apex.
	candles := ascendingTriangleCandles()
	for i := len(candles); i < 73; i++ {
		c := candle(i, (110+90+0.3*float64(i))/2, 0.5)
		c.Open = candles[i-1].Close
		candles = append(candles, c)
	}

	res := runDetector(t, withFamilies(ModeCompleted, analysis.TriangleAscending), candles)

	require.NotEmpty(t, res.Patterns)
	for _, c := range res.Patterns {
		assert.Nil(t, c.Breakout)
		assert.Equal(t, analysis.StatusExpired, c.Status)
	}
}

func TestTriangle_SymmetricalConverging(t *testing.T) {
	upper := func(x float64) float64 { return 110 - 10*x/29 }
	lower := func(x float64) float64 { return 90 + 5*x/29 }
	candles := pathCandles(30, 0.5, zigzag(29, upper, lower)...)

	opts := withFamilies(ModeCompleted,
		analysis.TriangleAscending, analysis.TriangleDescending, analysis.TriangleSymmetrical,
		analysis.RisingWedge, analysis.FallingWedge)
	res := runDetector(t, opts, candles)

	assert.Empty(t, ofType(res.Patterns, analysis.RisingWedge), "slopes of opposite sign are not a wedge")
	assert.Empty(t, ofType(res.Patterns, analysis.FallingWedge))
	assert.Empty(t, ofType(res.Patterns, analysis.TriangleAscending))

	sym := ofType(res.Patterns, analysis.TriangleSymmetrical)
	require.Len(t, sym, 1)
	c := sym[0]
	assert.Equal(t, analysis.Range{StartIndex: 6, EndIndex: 22}, c.Range)
	assert.Equal(t, analysis.PatternNeutral, c.Direction, "no prior trend before bar 6")
	g, ok := c.Geometry.(analysis.EnvelopeGeometry)
	require.True(t, ok)
	assert.Less(t, g.Upper.Slope, 0.0)
	assert.Greater(t, g.Lower.Slope, 0.0)
	assert.Less(t, g.SpreadEnd, g.SpreadStart)

	// The later window sees lows rising by less than the tolerance.
	desc := ofType(res.Patterns, analysis.TriangleDescending)
	require.Len(t, desc, 1)
	assert.Equal(t, analysis.Range{StartIndex: 10, EndIndex: 22}, desc[0].Range)
	assert.Len(t, res.Patterns, 2)
}

func TestWedge_Falling(t *testing.T) {
	upper := func(x float64) float64 { return 120 - 0.5*x }
	lower := func(x float64) float64 { return 100 - 0.2*x }
	candles := pathCandles(48, 0.1, zigzag(47, upper, lower)...)

	res := runDetector(t, withFamilies(ModeCompleted, analysis.RisingWedge, analysis.FallingWedge), candles)

	require.NotEmpty(t, res.Patterns)
	assert.Empty(t, ofType(res.Patterns, analysis.RisingWedge))
	for _, c := range ofType(res.Patterns, analysis.FallingWedge) {
		assert.Equal(t, analysis.PatternBullish, c.Direction)

		g, ok := c.Geometry.(analysis.EnvelopeGeometry)
		require.True(t, ok)
		assert.InDelta(t, -0.5, g.Upper.Slope, 1e-9)
		assert.InDelta(t, -0.2, g.Lower.Slope, 1e-9)
		assert.GreaterOrEqual(t, g.Score, 0.4)
		assert.GreaterOrEqual(t, len(g.Upper.TouchIndices), 2)
		assert.GreaterOrEqual(t, len(g.Lower.TouchIndices), 2)

		require.NotNil(t, c.ApexIndex)
		assert.InDelta(t, 200.0/3, *c.ApexIndex, 1e-6)
		require.NotNil(t, c.BreakoutTarget)
		assert.InDelta(t, g.Upper.ValueAt(float64(c.Range.StartIndex)), *c.BreakoutTarget, 1e-9)
	}
}

func TestWedge_Rising(t *testing.T) {
	upper := func(x float64) float64 { return 100 + 0.2*x }
	lower := func(x float64) float64 { return 80 + 0.5*x }
	candles := pathCandles(48, 0.1, zigzag(47, upper, lower)...)

	res := runDetector(t, withFamilies(ModeCompleted, analysis.RisingWedge, analysis.FallingWedge), candles)

	require.NotEmpty(t, res.Patterns)
	for _, c := range res.Patterns {
		assert.Equal(t, analysis.RisingWedge, c.Type)
		assert.Equal(t, analysis.PatternBearish, c.Direction)
	}
}

func TestWedge_SlopeRatioOutOfBand(t *testing.T) {
	// Upper slope is five times the lower slope.
	upper := func(x float64) float64 { return 130 - 0.5*x }
	lower := func(x float64) float64 { return 100 - 0.1*x }
	candles := pathCandles(48, 0.1, zigzag(47, upper, lower)...)

	res := runDetector(t, withFamilies(ModeCompleted, analysis.RisingWedge, analysis.FallingWedge), candles)

	assert.Empty(t, res.Patterns)
	assert.Greater(t, res.Diagnostics.Rejections["wedge: slope ratio"], 0)
}

func poleCandles(consolidation func(i int) (float64, float64)) []models.Candle {
	candles := pathCandles(11, 0.5, knot{0, 100}, knot{10, 115})
	for i := 11; i <= 20; i++ {
		px, wick := consolidation(i)
		c := candle(i, px, wick)
		c.Open = candles[i-1].Close
		candles = append(candles, c)
	}
	return candles
}

func TestFlag_Bullish(t *testing.T) {
	// Parallel drift down after a 15% pole.
	candles := poleCandles(func(i int) (float64, float64) {
		return 115 - 0.3*float64(i-10), 0.5
	})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.Flag, analysis.Pennant), candles)

	require.NotEmpty(t, res.Patterns)
	for _, c := range res.Patterns {
		assert.Equal(t, analysis.Flag, c.Type)
		assert.Equal(t, analysis.PatternBullish, c.Direction)

		g, ok := c.Geometry.(analysis.PoleGeometry)
		require.True(t, ok)
		assert.Greater(t, g.PoleMove, 0.08)
		assert.InDelta(t, g.Upper.Slope, g.Lower.Slope, 1e-9)
		require.NotNil(t, c.BreakoutTarget)
		assert.Greater(t, *c.BreakoutTarget, 115.0)
		assert.Nil(t, c.ApexIndex)
	}
}

func TestPennant_Bullish(t *testing.T) {
	// Flat closes with wicks shrinking to zero at bar 21.
	candles := poleCandles(func(i int) (float64, float64) {
		return 115, 2.0 - 0.2*float64(i-11)
	})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.Flag, analysis.Pennant), candles)

	require.NotEmpty(t, res.Patterns)
	pennants := ofType(res.Patterns, analysis.Pennant)
	require.NotEmpty(t, pennants)
	for _, c := range pennants {
		assert.Equal(t, analysis.PatternBullish, c.Direction)
		require.NotNil(t, c.ApexIndex)
		assert.InDelta(t, 21.0, *c.ApexIndex, 1e-6)
	}
}
