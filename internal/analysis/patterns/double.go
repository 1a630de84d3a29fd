package patterns

import (
	"chart-patterns/internal/analysis"
)

// doubles finds double tops (kind == PivotHigh) and double bottoms.
func (s *scan) doubles(kind analysis.PivotKind) []analysis.Candidate {
	var out []analysis.Candidate

	for i := 0; i+2 < len(s.pivots); i++ {
		a, mid, b := s.pivots[i], s.pivots[i+1], s.pivots[i+2]
		if a.Kind != kind || mid.Kind == kind || b.Kind != kind {
			continue
		}
		if c, ok := s.doubleFrom(kind, a, mid, b, false); ok {
			out = append(out, c)
		}
	}

	if s.opts.ProvisionalPivots {
		if c, ok := s.provisionalDouble(kind); ok {
			out = append(out, c)
		}
	}

	return out
}

// provisionalDouble proposes a second peak (or trough) from the unconfirmed
// extreme after the last opposite pivot.
func (s *scan) provisionalDouble(kind analysis.PivotKind) (analysis.Candidate, bool) {
	n := len(s.pivots)
	if n < 2 {
		return analysis.Candidate{}, false
	}
	a, mid := s.pivots[n-2], s.pivots[n-1]
	if a.Kind != kind || mid.Kind == kind {
		return analysis.Candidate{}, false
	}
	idx, ok := s.provisionalExtreme(mid.Index, kind)
	if !ok {
		return analysis.Candidate{}, false
	}
	b := s.pivotAt(idx, kind)
	c, ok := s.doubleFrom(kind, a, mid, b, true)
	if !ok {
		return analysis.Candidate{}, false
	}
	c.Confidence = analysis.Clamp01(c.Confidence * provisionalPenalty)
	c.AddWarning("second extreme is unconfirmed")
	return c, true
}

func (s *scan) doubleFrom(kind analysis.PivotKind, a, mid, b analysis.Pivot, provisional bool) (analysis.Candidate, bool) {
	span := b.Index - a.Index
	if span < s.opts.MinBarsBetween || span > s.opts.MaxPatternBars {
		s.diag.reject("double: spacing")
		return analysis.Candidate{}, false
	}

	ea, eb := s.extreme(a.Index, kind), s.extreme(b.Index, kind)
	diff := pctDiff(ea, eb)
	if diff > s.opts.Tolerance {
		s.diag.reject("double: peaks differ")
		return analysis.Candidate{}, false
	}

	neck := mid.Price
	avg := (ea + eb) / 2
	height := avg - neck
	if kind == analysis.PivotLow {
		height = neck - avg
	}
	if height <= 0 || height/avg < s.opts.MinDepth {
		s.diag.reject("double: shallow")
		return analysis.Candidate{}, false
	}

	t := analysis.DoubleTop
	dir := analysis.PatternBearish
	target := neck - height
	worst := ea
	if eb > worst {
		worst = eb
	}
	invalidation := worst * (1 + s.opts.Tolerance)
	if kind == analysis.PivotLow {
		t = analysis.DoubleBottom
		dir = analysis.PatternBullish
		target = neck + height
		worst = ea
		if eb < worst {
			worst = eb
		}
		invalidation = worst * (1 - s.opts.Tolerance)
	}

	// Proximity of the last close to the neckline, measured from the second extreme.
	proximity := 1.0
	if lastClose := s.candles[s.last].Close; finite(lastClose) && s.last > b.Index {
		proximity = 1 - pctDiff(lastClose, neck)/((height/avg)+s.opts.Tolerance)
	}
	completion := completionScore(proximity, provisional, s.trendBonus(kind == analysis.PivotLow))

	margin := 1 - diff/s.opts.Tolerance
	symmetry := symmetryScore(float64(mid.Index-a.Index), float64(b.Index-mid.Index))

	roles := [3]analysis.PivotRole{analysis.RoleLeftPeak, analysis.RoleMiddle, analysis.RoleRightPeak}
	return analysis.Candidate{
		Type:       t,
		Direction:  dir,
		Status:     analysis.StatusForming,
		Completion: completion,
		Confidence: confidenceScore(t, margin, symmetry, durationScore(t, span)),
		Range:      analysis.Range{StartIndex: a.Index, EndIndex: b.Index},
		KeyPivots: []analysis.KeyPivot{
			{Role: roles[0], Pivot: a},
			{Role: roles[1], Pivot: mid},
			{Role: roles[2], Pivot: b, Provisional: provisional},
		},
		Geometry: analysis.NecklineGeometry{
			Neckline: analysis.HorizontalLine(neck, mid.Index),
			Height:   height,
		},
		BreakoutTarget:    analysis.Float(target),
		InvalidationPrice: analysis.Float(invalidation),
		Provisional:       provisional,
	}, true
}
