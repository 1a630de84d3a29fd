package patterns

import (
	"math"

	"chart-patterns/internal/analysis"
)

// Wedge score weights.
const (
	wConvergence = 0.25
	wFit         = 0.20
	wTouches     = 0.15
	wInside      = 0.15
	wDuration    = 0.10
	wApex        = 0.10
	wRecency     = 0.05

	fullTouchCount = 6
)

// wedges scans sliding windows for rising and falling wedges and keeps the
// windows whose blended score clears Options.WedgeMinScore.
func (s *scan) wedges() []analysis.Candidate {
	var out []analysis.Candidate
	n := len(s.candles)

	for _, w := range s.opts.WedgeWindows {
		if w > n {
			continue
		}
		for start := n - w; start >= 0; start -= s.opts.WindowStep {
			s.diag.WindowsScanned++
			if c, ok := s.wedgeIn(start, start+w-1); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *scan) wedgeIn(start, end int) (analysis.Candidate, bool) {
	highs := pivotsBetween(s.highs, start, end)
	lows := pivotsBetween(s.lows, start, end)
	if len(highs) < 2 || len(lows) < 2 {
		return analysis.Candidate{}, false
	}

	upper, ok := fitAccepted(highs, s.opts.MinR2)
	if !ok {
		s.diag.reject("wedge: upper fit")
		return analysis.Candidate{}, false
	}
	lower, ok := fitAccepted(lows, s.opts.MinR2)
	if !ok {
		s.diag.reject("wedge: lower fit")
		return analysis.Candidate{}, false
	}

	mU, mL := upper.Slope, lower.Slope
	var t analysis.PatternType
	switch {
	case mU > 0 && mL > mU:
		t = analysis.RisingWedge
	case mL < 0 && mU < mL:
		t = analysis.FallingWedge
	default:
		s.diag.reject("wedge: slopes")
		return analysis.Candidate{}, false
	}
	ratio := math.Max(math.Abs(mU), math.Abs(mL)) / math.Min(math.Abs(mU), math.Abs(mL))
	if ratio < s.opts.WedgeMinSlopeRatio || ratio > s.opts.WedgeMaxSlopeRatio {
		s.diag.reject("wedge: slope ratio")
		return analysis.Candidate{}, false
	}

	upperTouches := s.touches(upper, start, end, analysis.PivotHigh)
	lowerTouches := s.touches(lower, start, end, analysis.PivotLow)
	if !s.touchesValid(upperTouches) || !s.touchesValid(lowerTouches) {
		s.diag.reject("wedge: touches")
		return analysis.Candidate{}, false
	}
	if abs(upperTouches[0]-lowerTouches[0]) > s.opts.WedgeFirstTouchAlign {
		s.diag.reject("wedge: first touches apart")
		return analysis.Candidate{}, false
	}

	spreadStart := upper.ValueAt(float64(start)) - lower.ValueAt(float64(start))
	spreadEnd := upper.ValueAt(float64(end)) - lower.ValueAt(float64(end))
	if spreadStart <= 0 || spreadEnd <= 0 || spreadEnd >= spreadStart {
		s.diag.reject("wedge: lines cross")
		return analysis.Candidate{}, false
	}
	convergence := spreadEnd / spreadStart
	if convergence >= s.opts.WedgeMaxConvergence {
		s.diag.reject("wedge: not converging")
		return analysis.Candidate{}, false
	}
	apex, ok := analysis.Intersect(upper, lower)
	if !ok || apex <= float64(end) {
		s.diag.reject("wedge: apex behind")
		return analysis.Candidate{}, false
	}

	x0 := min(highs[0].Index, lows[0].Index)
	x1 := max(highs[len(highs)-1].Index, lows[len(lows)-1].Index)
	if x1-x0 < s.opts.MinBarsBetween {
		return analysis.Candidate{}, false
	}

	n := float64(len(s.candles))
	fit := (upper.RSquared + lower.RSquared) / 2
	touchScore := math.Min(1, float64(len(upperTouches)+len(lowerTouches))/fullTouchCount)
	inside := s.insideFraction(upper, lower, start, end)
	duration := durationScore(t, end-start)
	apexProximity := analysis.Clamp01(1 - (apex-float64(end))/float64(end-start))
	recency := analysis.Clamp01(1 - (n-1-float64(end))/n)

	score := wConvergence*(1-convergence) + wFit*fit + wTouches*touchScore + wInside*inside +
		wDuration*duration + wApex*apexProximity + wRecency*recency
	if score < s.opts.WedgeMinScore {
		s.diag.reject("wedge: low score")
		return analysis.Candidate{}, false
	}

	dir := analysis.PatternBearish
	target := lower.ValueAt(float64(x0))
	invalidation := upper.ValueAt(float64(x1))
	if t == analysis.FallingWedge {
		dir = analysis.PatternBullish
		target = upper.ValueAt(float64(x0))
		invalidation = lower.ValueAt(float64(x1))
	}

	upper.TouchIndices = upperTouches
	lower.TouchIndices = lowerTouches

	progress := analysis.Clamp01(float64(s.last-x0) / (apex - float64(x0)))
	completion := analysis.Clamp01(0.2 + 0.4*progress + 0.4*(1-convergence) + s.trendBonus(dir == analysis.PatternBullish))

	kps := append(keyPivots(analysis.RoleUpperTouch, highs), keyPivots(analysis.RoleLowerTouch, lows)...)
	return analysis.Candidate{
		Type:       t,
		Direction:  dir,
		Status:     analysis.StatusForming,
		Completion: completion,
		Confidence: confidenceScore(t, score, fit, durationScore(t, x1-x0)),
		Range:      analysis.Range{StartIndex: x0, EndIndex: x1},
		KeyPivots:  sortKeyPivots(kps),
		Geometry: analysis.EnvelopeGeometry{
			Upper:       upper,
			Lower:       lower,
			SpreadStart: spreadStart,
			SpreadEnd:   spreadEnd,
			Score:       score,
		},
		BreakoutTarget:    analysis.Float(target),
		InvalidationPrice: analysis.Float(invalidation),
		ApexIndex:         analysis.Float(apex),
	}, true
}

// touches returns the bars whose wick comes within WedgeTouchTolerance of the
// line. Runs of adjacent touching bars count once, at their first bar.
func (s *scan) touches(line analysis.TrendLine, start, end int, kind analysis.PivotKind) []int {
	var out []int
	prev := -2
	for i := start; i <= end; i++ {
		c := s.candles[i]
		if !c.IsFinite() {
			continue
		}
		v := line.ValueAt(float64(i))
		if v <= 0 {
			continue
		}
		price := c.High
		if kind == analysis.PivotLow {
			price = c.Low
		}
		if math.Abs(price-v)/v > s.opts.WedgeTouchTolerance {
			continue
		}
		if i != prev+1 {
			out = append(out, i)
		}
		prev = i
	}
	return out
}

func (s *scan) touchesValid(touches []int) bool {
	if len(touches) < 2 {
		return false
	}
	for i := 1; i < len(touches); i++ {
		if touches[i]-touches[i-1] > s.opts.WedgeMaxTouchGap {
			return false
		}
	}
	return true
}

// insideFraction is the share of finite closes inside the envelope, with the
// touch tolerance as slack on each side.
func (s *scan) insideFraction(upper, lower analysis.TrendLine, start, end int) float64 {
	var inside, total int
	slack := s.opts.WedgeTouchTolerance
	for i := start; i <= end; i++ {
		c := s.candles[i].Close
		if !finite(c) {
			continue
		}
		total++
		x := float64(i)
		if c <= upper.ValueAt(x)*(1+slack) && c >= lower.ValueAt(x)*(1-slack) {
			inside++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inside) / float64(total)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
