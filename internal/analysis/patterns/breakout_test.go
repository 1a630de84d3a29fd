package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// channelScan returns a scan over ten bars closing at 105 followed by the
// given closes. ATR is left unset so buffers use the price fallback.
func channelScan(closes ...float64) *scan {
	var candles []models.Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, candle(i, 105, 0.5))
	}
	for _, px := range closes {
		candles = append(candles, candle(len(candles), px, 0.5))
	}
	opts := DefaultOptions(ModeCompleted)
	return newScan(opts, candles, nil, newDiagnostics(opts.Mode, len(candles)))
}

func envelopeCandidate(dir analysis.PatternDirection) analysis.Candidate {
	return analysis.Candidate{
		Type:      analysis.TriangleSymmetrical,
		Direction: dir,
		Range:     analysis.Range{StartIndex: 0, EndIndex: 9},
		Geometry: analysis.EnvelopeGeometry{
			Upper:       analysis.HorizontalLine(110),
			Lower:       analysis.HorizontalLine(100),
			SpreadStart: 10,
			SpreadEnd:   10,
		},
	}
}

func TestEvaluateEnvelope_ConfirmedBreakout(t *testing.T) {
	s := channelScan(112, 112.5, 113)
	c := envelopeCandidate(analysis.PatternBullish)

	s.assignStatus(&c)

	require.NotNil(t, c.Breakout)
	assert.True(t, c.Breakout.Completed)
	assert.Equal(t, 10, c.Breakout.BreakoutIndex, "the break dates from its first close")
	assert.Equal(t, 2, c.Breakout.BarsSinceBreak)
	assert.Equal(t, analysis.PatternBullish, c.Breakout.Side)
	assert.Equal(t, analysis.StatusCompletedActive, c.Status)
	assert.Equal(t, 1.0, c.Completion)
}

func TestEvaluateEnvelope_SingleCloseIsNotABreak(t *testing.T) {
	s := channelScan(112, 105, 106)
	c := envelopeCandidate(analysis.PatternBullish)

	s.assignStatus(&c)

	assert.Nil(t, c.Breakout)
	assert.Equal(t, analysis.StatusForming, c.Status)
}

func TestEvaluateEnvelope_NeutralTakesEitherSide(t *testing.T) {
	s := channelScan(98, 97)
	c := envelopeCandidate(analysis.PatternNeutral)

	s.assignStatus(&c)

	require.NotNil(t, c.Breakout)
	assert.True(t, c.Breakout.Completed)
	assert.Equal(t, analysis.PatternBearish, c.Breakout.Side)
}

func TestEvaluateEnvelope_AgainstDirection(t *testing.T) {
	s := channelScan(98, 97)
	c := envelopeCandidate(analysis.PatternBullish)

	s.assignStatus(&c)

	require.NotNil(t, c.Breakout)
	assert.True(t, c.Breakout.Invalidated)
	assert.Equal(t, reasonAgainstDirection, c.Breakout.Reason)
	assert.Equal(t, analysis.StatusInvalidated, c.Status)
}

func TestEvaluateEnvelope_FalseBreakout(t *testing.T) {
	s := channelScan(112, 112, 108, 107)
	c := envelopeCandidate(analysis.PatternBullish)

	s.assignStatus(&c)

	require.NotNil(t, c.Breakout)
	assert.True(t, c.Breakout.Completed)
	assert.True(t, c.Breakout.Invalidated)
	assert.Equal(t, reasonFalseBreakout, c.Breakout.Reason)
	assert.Equal(t, analysis.StatusInvalidated, c.Status)
}

func TestEvaluateEnvelope_ExpiresPastApex(t *testing.T) {
	s := channelScan(105, 105, 105, 105)
	c := envelopeCandidate(analysis.PatternBullish)
	c.ApexIndex = analysis.Float(11.5)

	s.assignStatus(&c)

	assert.Nil(t, c.Breakout)
	assert.Equal(t, analysis.StatusExpired, c.Status)
}

func TestEvaluateEnvelope_NearApex(t *testing.T) {
	s := channelScan(105, 105)
	c := envelopeCandidate(analysis.PatternBullish)
	c.ApexIndex = analysis.Float(14)

	s.assignStatus(&c)

	assert.Equal(t, analysis.StatusNearCompletion, c.Status)
}

func TestEvaluatePole_ExpiresWhenConsolidationRunsLong(t *testing.T) {
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 105
	}
	s := channelScan(closes...)
	c := analysis.Candidate{
		Type:      analysis.Flag,
		Direction: analysis.PatternBullish,
		Range:     analysis.Range{StartIndex: 0, EndIndex: 9},
		Geometry: analysis.PoleGeometry{
			PoleStart: 0,
			PoleEnd:   4,
			Upper:     analysis.HorizontalLine(110),
			Lower:     analysis.HorizontalLine(100),
		},
	}

	s.assignStatus(&c)

	assert.Nil(t, c.Breakout)
	assert.Equal(t, analysis.StatusExpired, c.Status)

	// One bar fewer is still within the consolidation allowance.
	s = channelScan(closes[:20]...)
	s.assignStatus(&c)
	assert.Equal(t, analysis.StatusForming, c.Status)
}

func TestEvaluateNeckline_IgnoresBarsAtOrBeforeRangeEnd(t *testing.T) {
	candles := doubleTopCandles()
	opts := DefaultOptions(ModeCompleted)
	s := newScan(opts, candles, nil, newDiagnostics(opts.Mode, len(candles)))
	c := analysis.Candidate{
		Type:              analysis.DoubleTop,
		Direction:         analysis.PatternBearish,
		Range:             analysis.Range{StartIndex: 5, EndIndex: 29},
		Geometry:          analysis.NecklineGeometry{Neckline: analysis.HorizontalLine(96), Height: 4},
		InvalidationPrice: analysis.Float(102),
	}

	ev := s.evaluate(&c)

	assert.Nil(t, ev.info)
	assert.False(t, ev.expired)
}
