package aftermath

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/patterns"
	"chart-patterns/internal/models"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// series builds candles closing at closes with a fixed wick.
func series(wick float64, closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, px := range closes {
		out[i] = models.Candle{
			Timestamp: epoch.AddDate(0, 0, i),
			Open:      px,
			High:      px + wick,
			Low:       px - wick,
			Close:     px,
		}
	}
	return out
}

func ramp(from, to float64, bars int) []float64 {
	out := make([]float64, bars)
	for i := range out {
		out[i] = from + (to-from)*float64(i+1)/float64(bars)
	}
	return out
}

func completedTop(breakoutIndex int, target float64) analysis.Candidate {
	return analysis.Candidate{
		Type:           analysis.DoubleTop,
		Direction:      analysis.PatternBearish,
		Geometry:       analysis.NecklineGeometry{Height: 10},
		BreakoutTarget: analysis.Float(target),
		Breakout: &analysis.BreakoutInfo{
			Completed:     true,
			BreakoutIndex: breakoutIndex,
			Side:          analysis.PatternBearish,
		},
	}
}

func TestAnalyze_TargetReached(t *testing.T) {
	closes := append([]float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 90}, ramp(90, 76, 14)...)
	candles := series(0.5, closes...)

	res := NewAnalyzer().Analyze(candles, completedTop(10, 80))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.TargetReached)
	assert.Equal(t, 10, res.BreakoutIndex)
	assert.Equal(t, 90.0, res.EntryPrice)
	// Bar 10+k closes at 90 - k; the low of bar 20 is 79.5.
	assert.Equal(t, 10, res.BarsToTarget)

	require.Len(t, res.Horizons, 3)
	assert.Equal(t, []int{3, 7, 14}, []int{res.Horizons[0].Bars, res.Horizons[1].Bars, res.Horizons[2].Bars})
	assert.InDelta(t, 3.0/90, res.Horizons[0].Return, 1e-9, "returns are signed in the pattern direction")
	assert.InDelta(t, 14.0/90, res.Move, 1e-9)
}

func TestAnalyze_PartialAndFailure(t *testing.T) {
	closes := append([]float64{100, 100, 100, 90}, ramp(90, 86, 14)...)
	res := NewAnalyzer().Analyze(series(0.5, closes...), completedTop(3, 70))
	assert.Equal(t, OutcomePartialSuccess, res.Outcome)
	assert.False(t, res.TargetReached)
	assert.Greater(t, res.Move, 0.0)

	closes = append([]float64{100, 100, 100, 90}, ramp(90, 95, 14)...)
	res = NewAnalyzer().Analyze(series(0.5, closes...), completedTop(3, 70))
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Less(t, res.Move, 0.0)
}

func TestAnalyze_NoBreakout(t *testing.T) {
	c := completedTop(3, 70)
	c.Breakout = nil

	res := NewAnalyzer().Analyze(series(0.5, 100, 100, 100, 100), c)

	assert.Equal(t, OutcomeNoBreakout, res.Outcome)
	assert.Equal(t, -1, res.BreakoutIndex)
}

func TestAnalyze_NeutralUsesBreakoutSide(t *testing.T) {
	c := analysis.Candidate{
		Type:      analysis.TriangleSymmetrical,
		Direction: analysis.PatternNeutral,
		Geometry:  analysis.EnvelopeGeometry{SpreadStart: 5},
		Breakout: &analysis.BreakoutInfo{
			Completed:     true,
			BreakoutIndex: 2,
			Side:          analysis.PatternBullish,
		},
	}
	closes := append([]float64{100, 100, 100}, ramp(100, 108, 8)...)

	res := NewAnalyzer().Analyze(series(0.2, closes...), c)

	assert.Equal(t, analysis.PatternBullish, res.Direction)
	assert.Equal(t, 105.0, res.Target, "target falls back to entry plus height")
	assert.True(t, res.TargetReached)
	assert.Len(t, res.Horizons, 2, "the 14 bar horizon is beyond the data")
}

func TestAggregate(t *testing.T) {
	results := []Result{
		{Type: analysis.DoubleTop, Outcome: OutcomeSuccess, Move: 0.10},
		{Type: analysis.DoubleTop, Outcome: OutcomeFailure, Move: -0.04},
		{Type: analysis.DoubleTop, Outcome: OutcomePartialSuccess, Move: 0.03},
		{Type: analysis.DoubleTop, Outcome: OutcomeSuccess, Move: 0.07},
		{Type: analysis.Flag, Outcome: OutcomeSuccess, Move: 0.05},
		{Type: analysis.Flag, Outcome: OutcomeNoBreakout},
	}

	stats := Aggregate(results, 2)

	require.Len(t, stats, 2)
	top := stats[0]
	assert.Equal(t, analysis.DoubleTop, top.Type)
	assert.Equal(t, 4, top.Count)
	assert.InDelta(t, 0.5, top.SuccessRate, 1e-9)
	assert.InDelta(t, 0.04, top.AvgMove, 1e-9)
	assert.InDelta(t, 0.03, top.MedianMove, 1e-9)
	require.Len(t, top.Examples, 2)
	assert.Equal(t, 0.10, top.Examples[0].Move)
	assert.Equal(t, 0.07, top.Examples[1].Move)

	flag := stats[1]
	assert.Equal(t, analysis.Flag, flag.Type)
	assert.Equal(t, 1, flag.Count)
	assert.Equal(t, 1.0, flag.SuccessRate)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, 3))
	assert.Empty(t, Aggregate([]Result{{Type: analysis.Flag, Outcome: OutcomeNoBreakout}}, 3))
}

// doubleTopHistory is a double top at bars 5 and 20 that breaks its neckline
// at bar 30 and then drifts for twelve bars.
func doubleTopHistory() []models.Candle {
	var closes []float64
	closes = append(closes, 94)
	closes = append(closes, ramp(94, 100, 5)...)
	closes = append(closes, ramp(100, 90, 7)...)
	closes = append(closes, ramp(90, 100, 8)...)
	closes = append(closes, ramp(100, 95, 9)...)
	for i := 0; i < 12; i++ {
		closes = append(closes, 85.5)
	}
	return series(0.5, closes...)
}

func TestEnricher_Historical(t *testing.T) {
	opts := patterns.DefaultOptions(patterns.ModeForming)
	enricher := NewEnricher(opts, nil, zerolog.Nop())

	stats, err := enricher.Historical(context.Background(), doubleTopHistory(),
		[]analysis.PatternType{analysis.DoubleTop, analysis.TripleTop})
	require.NoError(t, err)

	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, analysis.DoubleTop, s.Type)
	assert.Equal(t, 1, s.Count)
	require.Len(t, s.Examples, 1)
	assert.Equal(t, 30, s.Examples[0].BreakoutIndex)
	assert.Equal(t, 85.5, s.Examples[0].EntryPrice)
	assert.Equal(t, OutcomeFailure, s.Examples[0].Outcome, "price stalls above the target")
}

func TestEnricher_Lookback(t *testing.T) {
	enricher := NewEnricher(patterns.Options{}, NewAnalyzer(), zerolog.Nop())
	enricher.Lookback = 15

	stats, err := enricher.Historical(context.Background(), doubleTopHistory(), []analysis.PatternType{analysis.DoubleTop})
	require.NoError(t, err)
	assert.Empty(t, stats, "the last 15 bars hold no complete pattern")
}

func TestEnricher_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enricher := NewEnricher(patterns.Options{}, nil, zerolog.Nop())
	_, err := enricher.Historical(ctx, doubleTopHistory(), analysis.AllPatternTypes())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnricher_InvalidOptions(t *testing.T) {
	enricher := NewEnricher(patterns.Options{Tolerance: 0.9}, nil, zerolog.Nop())

	_, err := enricher.Historical(context.Background(), doubleTopHistory(), []analysis.PatternType{analysis.DoubleTop})
	assert.Error(t, err)
}

func TestAnalyze_PendingWithoutForwardBars(t *testing.T) {
	candles := series(0.5, 100, 100, 100, 100, 100, 90)

	res := NewAnalyzer().Analyze(candles, completedTop(5, 80))

	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, 5, res.BreakoutIndex)
	assert.Empty(t, res.Horizons)
	assert.Zero(t, res.Move)
	assert.Empty(t, Aggregate([]Result{res}, 3), "pending results are not counted")
}

func TestAnalyze_EarlyTargetBeforeFirstHorizon(t *testing.T) {
	candles := series(0.5, 100, 100, 100, 90, 85, 79)

	res := NewAnalyzer().Analyze(candles, completedTop(3, 80))

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Horizons)
	assert.Equal(t, 2, res.BarsToTarget)
}

func TestNewEnricher_CompletedModeDefaults(t *testing.T) {
	e := NewEnricher(patterns.DefaultOptions(patterns.ModeForming), nil, zerolog.Nop())
	d, err := patterns.NewDetector(e.opts, zerolog.Nop())
	require.NoError(t, err)

	got := d.Options()
	assert.Equal(t, patterns.ModeCompleted, got.Mode)
	assert.Equal(t, 0.02, got.Tolerance)
	assert.Equal(t, 5, got.MinBarsBetween)
	assert.False(t, got.ProvisionalPivots)

	e = NewEnricher(patterns.Options{Mode: patterns.ModeForming, Tolerance: 0.03}, nil, zerolog.Nop())
	d, err = patterns.NewDetector(e.opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0.03, d.Options().Tolerance, "explicit tolerance is kept")
	assert.Equal(t, 5, d.Options().MinBarsBetween)
}
