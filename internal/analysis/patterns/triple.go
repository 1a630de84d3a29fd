package patterns

import (
	"math"

	"chart-patterns/internal/analysis"
)

// triples finds triple tops (kind == PivotHigh) and triple bottoms from three
// consecutive same-kind pivots.
func (s *scan) triples(kind analysis.PivotKind) []analysis.Candidate {
	same, opposite := s.highs, s.lows
	if kind == analysis.PivotLow {
		same, opposite = s.lows, s.highs
	}

	var out []analysis.Candidate
	for i := 0; i+2 < len(same); i++ {
		p := [3]analysis.Pivot{same[i], same[i+1], same[i+2]}
		if c, ok := s.tripleFrom(kind, p, opposite); ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *scan) tripleFrom(kind analysis.PivotKind, p [3]analysis.Pivot, opposite []analysis.Pivot) (analysis.Candidate, bool) {
	if p[1].Index-p[0].Index < s.opts.MinBarsBetween || p[2].Index-p[1].Index < s.opts.MinBarsBetween {
		s.diag.reject("triple: spacing")
		return analysis.Candidate{}, false
	}
	span := p[2].Index - p[0].Index
	if span > s.opts.MaxPatternBars {
		s.diag.reject("triple: too long")
		return analysis.Candidate{}, false
	}

	ext := [3]float64{}
	hi, lo := math.Inf(-1), math.Inf(1)
	for i := range p {
		ext[i] = s.extreme(p[i].Index, kind)
		hi = math.Max(hi, ext[i])
		lo = math.Min(lo, ext[i])
	}
	spread := pctDiff(hi, lo)
	if spread > s.opts.Tolerance {
		s.diag.reject("triple: peaks differ")
		return analysis.Candidate{}, false
	}

	// One opposite pivot in each gap; the neckline sits at the most extreme of them.
	left := pivotsBetween(opposite, p[0].Index+1, p[1].Index-1)
	right := pivotsBetween(opposite, p[1].Index+1, p[2].Index-1)
	if len(left) == 0 || len(right) == 0 {
		s.diag.reject("triple: missing trough")
		return analysis.Candidate{}, false
	}
	neckPivot := left[0]
	for _, q := range append(left, right...) {
		if (kind == analysis.PivotHigh && q.Price < neckPivot.Price) ||
			(kind == analysis.PivotLow && q.Price > neckPivot.Price) {
			neckPivot = q
		}
	}
	neck := neckPivot.Price

	avg := (ext[0] + ext[1] + ext[2]) / 3
	height := avg - neck
	t, dir := analysis.TripleTop, analysis.PatternBearish
	target := neck - height
	invalidation := hi * (1 + s.opts.Tolerance)
	if kind == analysis.PivotLow {
		height = neck - avg
		t, dir = analysis.TripleBottom, analysis.PatternBullish
		target = neck + height
		invalidation = lo * (1 - s.opts.Tolerance)
	}
	if height <= 0 || height/avg < s.opts.MinDepth {
		s.diag.reject("triple: shallow")
		return analysis.Candidate{}, false
	}

	proximity := 1.0
	if lastClose := s.candles[s.last].Close; finite(lastClose) && s.last > p[2].Index {
		proximity = 1 - pctDiff(lastClose, neck)/((height/avg)+s.opts.Tolerance)
	}

	margin := 1 - spread/s.opts.Tolerance
	symmetry := symmetryScore(float64(p[1].Index-p[0].Index), float64(p[2].Index-p[1].Index))

	return analysis.Candidate{
		Type:       t,
		Direction:  dir,
		Status:     analysis.StatusForming,
		Completion: completionScore(proximity, false, s.trendBonus(kind == analysis.PivotLow)),
		Confidence: confidenceScore(t, margin, symmetry, durationScore(t, span)),
		Range:      analysis.Range{StartIndex: p[0].Index, EndIndex: p[2].Index},
		KeyPivots: []analysis.KeyPivot{
			{Role: analysis.RoleFirst, Pivot: p[0]},
			{Role: analysis.RoleSecond, Pivot: p[1]},
			{Role: analysis.RoleThird, Pivot: p[2]},
			{Role: analysis.RoleMiddle, Pivot: neckPivot},
		},
		Geometry: analysis.NecklineGeometry{
			Neckline: analysis.HorizontalLine(neck, neckPivot.Index),
			Height:   height,
		},
		BreakoutTarget:    analysis.Float(target),
		InvalidationPrice: analysis.Float(invalidation),
	}, true
}
