package patterns

import (
	"chart-patterns/internal/analysis"
)

// priorTrendBars is how far before a symmetrical triangle the prevailing trend is read.
const priorTrendBars = 10

// triangles scans sliding windows for ascending, descending and symmetrical triangles.
func (s *scan) triangles() []analysis.Candidate {
	var out []analysis.Candidate
	n := len(s.candles)

	for _, w := range s.opts.TriangleWindows {
		if w > n {
			continue
		}
		for start := n - w; start >= 0; start -= s.opts.WindowStep {
			s.diag.WindowsScanned++
			if c, ok := s.triangleIn(start, start+w-1); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *scan) triangleIn(start, end int) (analysis.Candidate, bool) {
	highs := pivotsBetween(s.highs, start, end)
	lows := pivotsBetween(s.lows, start, end)
	if len(highs) < 2 || len(lows) < 2 {
		return analysis.Candidate{}, false
	}

	fh, lh := highs[0], highs[len(highs)-1]
	fl, ll := lows[0], lows[len(lows)-1]
	hDir := direction(fh.Price, lh.Price, s.opts.Tolerance)
	lDir := direction(fl.Price, ll.Price, s.opts.Tolerance)

	var t analysis.PatternType
	switch {
	case hDir == dirFlat && lDir == dirRising:
		t = analysis.TriangleAscending
	case lDir == dirFlat && hDir == dirFalling:
		t = analysis.TriangleDescending
	case hDir == dirFalling && lDir == dirRising:
		t = analysis.TriangleSymmetrical
	default:
		return analysis.Candidate{}, false
	}

	var upper, lower analysis.TrendLine
	var ok bool
	if hDir == dirFlat {
		upper = analysis.HorizontalLine(meanPrice(highs), pivotIndices(highs)...)
	} else if upper, ok = fitAccepted(highs, s.opts.MinR2); !ok || upper.Slope >= 0 {
		s.diag.reject("triangle: upper fit")
		return analysis.Candidate{}, false
	}
	if lDir == dirFlat {
		lower = analysis.HorizontalLine(meanPrice(lows), pivotIndices(lows)...)
	} else if lower, ok = fitAccepted(lows, s.opts.MinR2); !ok || lower.Slope <= 0 {
		s.diag.reject("triangle: lower fit")
		return analysis.Candidate{}, false
	}

	x0 := min(fh.Index, fl.Index)
	x1 := max(lh.Index, ll.Index)
	if x1-x0 < s.opts.MinBarsBetween {
		return analysis.Candidate{}, false
	}
	spread0 := upper.ValueAt(float64(x0)) - lower.ValueAt(float64(x0))
	spread1 := upper.ValueAt(float64(x1)) - lower.ValueAt(float64(x1))
	if spread0 <= 0 || spread1 <= 0 {
		s.diag.reject("triangle: lines cross")
		return analysis.Candidate{}, false
	}
	ratio := spread1 / spread0
	if ratio > s.opts.TriangleMaxSpreadRatio {
		s.diag.reject("triangle: not converging")
		return analysis.Candidate{}, false
	}
	apex, ok := analysis.Intersect(upper, lower)
	if !ok || apex <= float64(x1) {
		s.diag.reject("triangle: apex behind")
		return analysis.Candidate{}, false
	}

	dir := analysis.PatternNeutral
	switch t {
	case analysis.TriangleAscending:
		dir = analysis.PatternBullish
	case analysis.TriangleDescending:
		dir = analysis.PatternBearish
	default:
		dir = s.priorTrend(x0)
	}

	var target, invalidation *float64
	upperEnd, lowerEnd := upper.ValueAt(float64(x1)), lower.ValueAt(float64(x1))
	switch dir {
	case analysis.PatternBullish:
		target = analysis.Float(upperEnd + spread0)
		invalidation = analysis.Float(lowerEnd)
	case analysis.PatternBearish:
		target = analysis.Float(lowerEnd - spread0)
		invalidation = analysis.Float(upperEnd)
	}

	progress := analysis.Clamp01(float64(s.last-x0) / (apex - float64(x0)))
	bonus := 0.0
	if dir != analysis.PatternNeutral {
		bonus = s.trendBonus(dir == analysis.PatternBullish)
	}
	completion := analysis.Clamp01(0.2 + 0.4*progress + 0.4*(1-ratio) + bonus)

	margin := (s.opts.TriangleMaxSpreadRatio - ratio) / s.opts.TriangleMaxSpreadRatio
	fit := (upper.RSquared + lower.RSquared) / 2

	kps := append(keyPivots(analysis.RoleUpperTouch, highs), keyPivots(analysis.RoleLowerTouch, lows)...)
	return analysis.Candidate{
		Type:              t,
		Direction:         dir,
		Status:            analysis.StatusForming,
		Completion:        completion,
		Confidence:        confidenceScore(t, margin, fit, durationScore(t, x1-x0)),
		Range:             analysis.Range{StartIndex: x0, EndIndex: x1},
		KeyPivots:         sortKeyPivots(kps),
		Geometry:          analysis.EnvelopeGeometry{Upper: upper, Lower: lower, SpreadStart: spread0, SpreadEnd: spread1},
		BreakoutTarget:    target,
		InvalidationPrice: invalidation,
		ApexIndex:         analysis.Float(apex),
	}, true
}

// priorTrend reads the close-to-close move over the bars before idx.
func (s *scan) priorTrend(idx int) analysis.PatternDirection {
	from := idx - priorTrendBars
	if from < 0 {
		return analysis.PatternNeutral
	}
	a, b := s.candles[from].Close, s.candles[idx].Close
	if !finite(a) || !finite(b) || a == b {
		return analysis.PatternNeutral
	}
	if b > a {
		return analysis.PatternBullish
	}
	return analysis.PatternBearish
}

func pivotIndices(pivots []analysis.Pivot) []int {
	out := make([]int, len(pivots))
	for i, p := range pivots {
		out[i] = p.Index
	}
	return out
}
