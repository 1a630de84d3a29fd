package patterns

import (
	"math"

	"chart-patterns/internal/analysis"
)

// poles finds pennants and flags: a sharp pole immediately followed by a short
// consolidation. For each end bar only the shortest matching consolidation is kept.
func (s *scan) poles() []analysis.Candidate {
	var out []analysis.Candidate
	minEnd := s.opts.PoleLookback + s.opts.ConsolidationMinBars

	for e := s.last; e >= minEnd; e-- {
		for l := s.opts.ConsolidationMinBars; l <= s.opts.ConsolidationMaxBars; l++ {
			p1 := e - l
			p0 := p1 - s.opts.PoleLookback
			if p0 < 0 {
				break
			}
			if c, ok := s.poleFrom(p0, p1, e); ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (s *scan) poleFrom(p0, p1, e int) (analysis.Candidate, bool) {
	c0, c1 := s.candles[p0].Close, s.candles[p1].Close
	if !finite(c0) || !finite(c1) || c0 <= 0 {
		return analysis.Candidate{}, false
	}
	move := (c1 - c0) / c0
	if math.Abs(move) < s.opts.PoleMinMove {
		return analysis.Candidate{}, false
	}
	poleSize := math.Abs(c1 - c0)
	bullish := move > 0

	xs := make([]float64, 0, e-p1)
	his := make([]float64, 0, e-p1)
	los := make([]float64, 0, e-p1)
	hi, lo := math.Inf(-1), math.Inf(1)
	for i := p1 + 1; i <= e; i++ {
		c := s.candles[i]
		if !c.IsFinite() {
			continue
		}
		xs = append(xs, float64(i))
		his = append(his, c.High)
		los = append(los, c.Low)
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	if len(xs) < s.opts.ConsolidationMinBars {
		return analysis.Candidate{}, false
	}
	retrace := (hi - lo) / poleSize
	if retrace > s.opts.ConsolidationMaxRetrace {
		s.diag.reject("pole: consolidation too wide")
		return analysis.Candidate{}, false
	}

	upper, okU := FitPoints(xs, his)
	lower, okL := FitPoints(xs, los)
	if !okU || !okL || !AcceptLine(upper, s.opts.MinR2) || !AcceptLine(lower, s.opts.MinR2) {
		s.diag.reject("pole: consolidation fit")
		return analysis.Candidate{}, false
	}

	start, end := float64(p1+1), float64(e)
	spreadStart := upper.ValueAt(start) - lower.ValueAt(start)
	spreadEnd := upper.ValueAt(end) - lower.ValueAt(end)
	if spreadStart <= 0 || spreadEnd <= 0 {
		s.diag.reject("pole: lines cross")
		return analysis.Candidate{}, false
	}

	mU, mL := upper.Slope, lower.Slope
	var t analysis.PatternType
	var apex *float64
	progress := float64(e-p1) / float64(s.opts.ConsolidationMaxBars)
	switch {
	case mU < 0 && mL > 0 && spreadEnd/spreadStart < s.opts.TriangleMaxSpreadRatio:
		t = analysis.Pennant
		if x, ok := analysis.Intersect(upper, lower); ok && x > end {
			apex = analysis.Float(x)
			progress = (end - float64(p1)) / (x - float64(p1))
		}
	case againstPole(mU, bullish) && againstPole(mL, bullish) &&
		math.Abs(mU-mL) <= s.opts.FlagParallelTolerance*math.Max(math.Abs(mU), math.Abs(mL)):
		t = analysis.Flag
	default:
		s.diag.reject("pole: consolidation shape")
		return analysis.Candidate{}, false
	}

	dir := analysis.PatternBearish
	poleKinds := [2]analysis.PivotKind{analysis.PivotHigh, analysis.PivotLow}
	target := lower.ValueAt(end) - poleSize
	invalidation := upper.ValueAt(end)
	if bullish {
		dir = analysis.PatternBullish
		poleKinds = [2]analysis.PivotKind{analysis.PivotLow, analysis.PivotHigh}
		target = upper.ValueAt(end) + poleSize
		invalidation = lower.ValueAt(end)
	}

	margin := 1 - retrace/s.opts.ConsolidationMaxRetrace
	fit := (upper.RSquared + lower.RSquared) / 2

	return analysis.Candidate{
		Type:       t,
		Direction:  dir,
		Status:     analysis.StatusForming,
		Completion: completionScore(progress, false, s.trendBonus(bullish)),
		Confidence: confidenceScore(t, margin, fit, durationScore(t, e-p0)),
		Range:      analysis.Range{StartIndex: p0, EndIndex: e},
		KeyPivots: []analysis.KeyPivot{
			{Role: analysis.RolePoleStart, Pivot: s.pivotAt(p0, poleKinds[0])},
			{Role: analysis.RolePoleEnd, Pivot: s.pivotAt(p1, poleKinds[1])},
		},
		Geometry: analysis.PoleGeometry{
			PoleStart: p0,
			PoleEnd:   p1,
			PoleMove:  move,
			PoleSize:  poleSize,
			Upper:     upper,
			Lower:     lower,
		},
		BreakoutTarget:    analysis.Float(target),
		InvalidationPrice: analysis.Float(invalidation),
		ApexIndex:         apex,
	}, true
}

// againstPole reports whether slope m leans against the pole direction.
func againstPole(m float64, bullish bool) bool {
	if bullish {
		return m < 0
	}
	return m > 0
}
