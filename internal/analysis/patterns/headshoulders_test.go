package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-patterns/internal/analysis"
)

func TestHeadAndShoulders_Top(t *testing.T) {
	candles := pathCandles(37, 0.5,
		knot{0, 90}, knot{5, 100}, knot{10, 92}, knot{16, 110}, knot{22, 92}, knot{28, 100}, knot{36, 95})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.HeadAndShoulders, analysis.InverseHeadAndShoulders), candles)

	require.Len(t, res.Patterns, 1)
	c := res.Patterns[0]
	assert.Equal(t, analysis.HeadAndShoulders, c.Type)
	assert.Equal(t, analysis.PatternBearish, c.Direction)
	assert.Equal(t, analysis.Range{StartIndex: 5, EndIndex: 28}, c.Range)
	assert.Empty(t, c.Warnings)

	g, ok := c.Geometry.(analysis.NecklineGeometry)
	require.True(t, ok)
	assert.InDelta(t, 0.0, g.Neckline.Slope, 1e-9)
	assert.InDelta(t, 92.0, g.Neckline.ValueAt(28), 1e-9)
	assert.InDelta(t, 18.5, g.Height, 1e-9)

	require.NotNil(t, c.BreakoutTarget)
	assert.InDelta(t, 73.5, *c.BreakoutTarget, 1e-9)
	require.NotNil(t, c.InvalidationPrice)
	assert.InDelta(t, 110.5, *c.InvalidationPrice, 1e-9)

	roles := make(map[analysis.PivotRole]int)
	for _, kp := range c.KeyPivots {
		roles[kp.Role] = kp.Pivot.Index
	}
	assert.Equal(t, map[analysis.PivotRole]int{
		analysis.RoleLeftShoulder:  5,
		analysis.RoleNeckLeft:      10,
		analysis.RoleHead:          16,
		analysis.RoleNeckRight:     22,
		analysis.RoleRightShoulder: 28,
	}, roles)
}

func TestHeadAndShoulders_Inverse(t *testing.T) {
	candles := pathCandles(37, 0.5,
		knot{0, 110}, knot{5, 100}, knot{10, 108}, knot{16, 90}, knot{22, 108}, knot{28, 100}, knot{36, 105})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.HeadAndShoulders, analysis.InverseHeadAndShoulders), candles)

	require.Len(t, res.Patterns, 1)
	c := res.Patterns[0]
	assert.Equal(t, analysis.InverseHeadAndShoulders, c.Type)
	assert.Equal(t, analysis.PatternBullish, c.Direction)
	require.NotNil(t, c.BreakoutTarget)
	assert.InDelta(t, 126.5, *c.BreakoutTarget, 1e-9)
}

func TestHeadAndShoulders_SlopedNecklineIsHorizontalized(t *testing.T) {
	candles := pathCandles(37, 0.5,
		knot{0, 90}, knot{5, 100}, knot{10, 90}, knot{16, 110}, knot{22, 94}, knot{28, 100}, knot{36, 96})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.HeadAndShoulders), candles)

	require.Len(t, res.Patterns, 1)
	c := res.Patterns[0]
	assert.Contains(t, c.Warnings, "neckline horizontalized")
	g := c.Geometry.(analysis.NecklineGeometry)
	assert.Equal(t, 0.0, g.Neckline.Slope)
	assert.InDelta(t, 92.0, g.Neckline.Intercept, 1e-9)
}

func TestHeadAndShoulders_HeadTooSmall(t *testing.T) {
	candles := pathCandles(37, 0.5,
		knot{0, 90}, knot{5, 100}, knot{10, 92}, knot{16, 102}, knot{22, 92}, knot{28, 100}, knot{36, 95})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.HeadAndShoulders), candles)

	assert.Empty(t, res.Patterns)
	assert.Equal(t, 1, res.Diagnostics.Rejections["head_and_shoulders: head too small"])
}

func TestTripleTop(t *testing.T) {
	candles := pathCandles(38, 0.5,
		knot{0, 90}, knot{5, 100}, knot{11, 92}, knot{17, 100}, knot{23, 93}, knot{29, 100}, knot{37, 96})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.TripleTop, analysis.TripleBottom), candles)

	require.Len(t, res.Patterns, 1)
	c := res.Patterns[0]
	assert.Equal(t, analysis.TripleTop, c.Type)
	assert.Equal(t, analysis.PatternBearish, c.Direction)
	assert.Equal(t, analysis.Range{StartIndex: 5, EndIndex: 29}, c.Range)

	g := c.Geometry.(analysis.NecklineGeometry)
	assert.InDelta(t, 92.0, g.Neckline.Intercept, 1e-9, "neckline at the lowest trough")
	assert.InDelta(t, 8.5, g.Height, 1e-9)
	require.NotNil(t, c.BreakoutTarget)
	assert.InDelta(t, 83.5, *c.BreakoutTarget, 1e-9)
	assert.Len(t, c.KeyPivots, 4)
}

func TestTripleBottom(t *testing.T) {
	candles := pathCandles(38, 0.5,
		knot{0, 110}, knot{5, 100}, knot{11, 108}, knot{17, 100}, knot{23, 107}, knot{29, 100}, knot{37, 104})

	res := runDetector(t, withFamilies(ModeCompleted, analysis.TripleBottom), candles)

	require.Len(t, res.Patterns, 1)
	c := res.Patterns[0]
	assert.Equal(t, analysis.TripleBottom, c.Type)
	assert.Equal(t, analysis.PatternBullish, c.Direction)
	g := c.Geometry.(analysis.NecklineGeometry)
	assert.InDelta(t, 108.0, g.Neckline.Intercept, 1e-9, "neckline at the highest peak")
}
