package patterns

import (
	"math"

	"chart-patterns/internal/analysis"
)

// headAndShoulders finds head-and-shoulders tops (kind == PivotHigh) and
// inverse head-and-shoulders bottoms from five alternating pivots.
func (s *scan) headAndShoulders(kind analysis.PivotKind) []analysis.Candidate {
	var out []analysis.Candidate

	for i := 0; i+4 < len(s.pivots); i++ {
		p := s.pivots[i : i+5]
		if !alternates(p, kind) {
			continue
		}
		if c, ok := s.shouldersFrom(kind, p[0], p[1], p[2], p[3], p[4], false); ok {
			out = append(out, c)
		}
	}

	if s.opts.ProvisionalPivots {
		if c, ok := s.provisionalShoulders(kind); ok {
			out = append(out, c)
		}
	}

	return out
}

// alternates reports whether p starts with kind and alternates from there.
func alternates(p []analysis.Pivot, kind analysis.PivotKind) bool {
	for i, q := range p {
		if (i%2 == 0) != (q.Kind == kind) {
			return false
		}
	}
	return true
}

// provisionalShoulders uses the unconfirmed extreme after the last four
// pivots as the right shoulder, but only while closes trend toward the neckline.
func (s *scan) provisionalShoulders(kind analysis.PivotKind) (analysis.Candidate, bool) {
	n := len(s.pivots)
	if n < 4 {
		return analysis.Candidate{}, false
	}
	p := s.pivots[n-4:]
	if !alternates(p, kind) {
		return analysis.Candidate{}, false
	}
	// Toward the neckline means down for a top and up for a bottom.
	want := -1
	if kind == analysis.PivotLow {
		want = 1
	}
	if s.closesTrend() != want {
		s.diag.reject("head_and_shoulders: provisional shoulder not confirming")
		return analysis.Candidate{}, false
	}
	idx, ok := s.provisionalExtreme(p[3].Index, kind)
	if !ok {
		return analysis.Candidate{}, false
	}
	rs := s.pivotAt(idx, kind)

	c, ok := s.shouldersFrom(kind, p[0], p[1], p[2], p[3], rs, true)
	if !ok {
		return analysis.Candidate{}, false
	}
	c.Confidence = analysis.Clamp01(c.Confidence * shoulderPenalty)
	c.AddWarning("right shoulder is unconfirmed")
	return c, true
}

func (s *scan) shouldersFrom(kind analysis.PivotKind, ls, n1, head, n2, rs analysis.Pivot, provisional bool) (analysis.Candidate, bool) {
	span := rs.Index - ls.Index
	if span > s.opts.MaxPatternBars || head.Index-ls.Index < s.opts.MinBarsBetween/2 ||
		rs.Index-head.Index < s.opts.MinBarsBetween/2 || span < 2*s.opts.MinBarsBetween {
		s.diag.reject("head_and_shoulders: spacing")
		return analysis.Candidate{}, false
	}

	el, eh, er := s.extreme(ls.Index, kind), s.extreme(head.Index, kind), s.extreme(rs.Index, kind)
	if kind == analysis.PivotHigh {
		if eh < el*(1+s.opts.HeadMinExcess) || eh < er*(1+s.opts.HeadMinExcess) {
			s.diag.reject("head_and_shoulders: head too small")
			return analysis.Candidate{}, false
		}
	} else {
		if eh > el*(1-s.opts.HeadMinExcess) || eh > er*(1-s.opts.HeadMinExcess) {
			s.diag.reject("head_and_shoulders: head too small")
			return analysis.Candidate{}, false
		}
	}
	diff := pctDiff(el, er)
	if diff > s.opts.Tolerance {
		s.diag.reject("head_and_shoulders: shoulders differ")
		return analysis.Candidate{}, false
	}

	neckline, ok := FitPivots([]analysis.Pivot{n1, n2})
	avgNeck := (n1.Price + n2.Price) / 2
	var warnings []string
	if !ok || avgNeck <= 0 || math.Abs(neckline.Slope)/avgNeck > s.opts.NecklineSlopeTolerance {
		neckline = analysis.HorizontalLine(avgNeck, n1.Index, n2.Index)
		warnings = append(warnings, "neckline horizontalized")
	}

	neckAtHead := neckline.ValueAt(float64(head.Index))
	neckAtRS := neckline.ValueAt(float64(rs.Index))
	height := eh - neckAtHead
	t, dir := analysis.HeadAndShoulders, analysis.PatternBearish
	target := neckAtRS - height
	invalidation := eh
	if kind == analysis.PivotLow {
		height = neckAtHead - eh
		t, dir = analysis.InverseHeadAndShoulders, analysis.PatternBullish
		target = neckAtRS + height
	}
	if height <= 0 || neckAtRS <= 0 {
		s.diag.reject("head_and_shoulders: non-positive height")
		return analysis.Candidate{}, false
	}

	proximity := 1.0
	if lastClose := s.candles[s.last].Close; finite(lastClose) && s.last > rs.Index {
		neckNow := neckline.ValueAt(float64(s.last))
		proximity = 1 - math.Abs(lastClose-neckNow)/height
	}

	margin := 1 - diff/s.opts.Tolerance
	symmetry := symmetryScore(float64(head.Index-ls.Index), float64(rs.Index-head.Index))

	return analysis.Candidate{
		Type:       t,
		Direction:  dir,
		Status:     analysis.StatusForming,
		Completion: completionScore(proximity, provisional, s.trendBonus(kind == analysis.PivotLow)),
		Confidence: confidenceScore(t, margin, symmetry, durationScore(t, span)),
		Range:      analysis.Range{StartIndex: ls.Index, EndIndex: rs.Index},
		KeyPivots: []analysis.KeyPivot{
			{Role: analysis.RoleLeftShoulder, Pivot: ls},
			{Role: analysis.RoleNeckLeft, Pivot: n1},
			{Role: analysis.RoleHead, Pivot: head},
			{Role: analysis.RoleNeckRight, Pivot: n2},
			{Role: analysis.RoleRightShoulder, Pivot: rs, Provisional: provisional},
		},
		Geometry: analysis.NecklineGeometry{
			Neckline: neckline,
			Height:   height,
		},
		BreakoutTarget:    analysis.Float(target),
		InvalidationPrice: analysis.Float(invalidation),
		Provisional:       provisional,
		Warnings:          warnings,
	}, true
}
