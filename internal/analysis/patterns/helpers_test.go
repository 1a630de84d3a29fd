package patterns

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// knot is a turning point of a piecewise linear close path.
type knot struct {
	x int
	p float64
}

var testEpoch = time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)

// pathCandles builds n daily candles whose closes follow the straight
// segments between knots. Highs and lows sit wick above and below the close.
// The knots must cover [0, n-1].
func pathCandles(n int, wick float64, knots ...knot) []models.Candle {
	candles := make([]models.Candle, n)
	seg := 0
	for i := 0; i < n; i++ {
		for seg+1 < len(knots)-1 && knots[seg+1].x <= i {
			seg++
		}
		a, b := knots[seg], knots[seg+1]
		px := a.p + (b.p-a.p)*float64(i-a.x)/float64(b.x-a.x)
		candles[i] = candle(i, px, wick)
	}
	for i := 1; i < n; i++ {
		candles[i].Open = candles[i-1].Close
	}
	return candles
}

func candle(i int, px, wick float64) models.Candle {
	return models.Candle{
		Timestamp: testEpoch.AddDate(0, 0, i),
		Open:      px,
		High:      px + wick,
		Low:       px - wick,
		Close:     px,
		Volume:    1000,
	}
}

// appendFlat extends candles with count bars closing at px.
func appendFlat(candles []models.Candle, count int, px, wick float64) []models.Candle {
	out := append([]models.Candle(nil), candles...)
	for k := 0; k < count; k++ {
		c := candle(len(out), px, wick)
		c.Open = out[len(out)-1].Close
		out = append(out, c)
	}
	return out
}

// zigzag returns knots alternating between the upper and lower functions:
// troughs at -2, 6, 14, ... and peaks at 2, 10, 18, ... up to last.
func zigzag(last int, upper, lower func(x float64) float64) []knot {
	var ks []knot
	for x, k := -2, 0; x <= last+4; x, k = x+4, k+1 {
		if k%2 == 0 {
			ks = append(ks, knot{x, lower(float64(x))})
		} else {
			ks = append(ks, knot{x, upper(float64(x))})
		}
	}
	return ks
}

// doubleTopCandles is a 30 bar series with peaks at 100 on bars 5 and 20 and
// a trough at 90 on bar 12, drifting down to 95 afterwards.
func doubleTopCandles() []models.Candle {
	return pathCandles(30, 0.5, knot{0, 94}, knot{5, 100}, knot{12, 90}, knot{20, 100}, knot{29, 95})
}

func newTestDetector(t *testing.T, opts Options) *Detector {
	t.Helper()
	d, err := NewDetector(opts, zerolog.Nop())
	require.NoError(t, err)
	return d
}

func runDetector(t *testing.T, opts Options, candles []models.Candle) *Result {
	t.Helper()
	res, err := newTestDetector(t, opts).Run(candles)
	require.NoError(t, err)
	return res
}

func ofType(cs []analysis.Candidate, t analysis.PatternType) []analysis.Candidate {
	var out []analysis.Candidate
	for _, c := range cs {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func withFamilies(mode Mode, types ...analysis.PatternType) Options {
	return Options{Mode: mode, Families: types}
}
