package patterns

import (
	"math"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/indicators"
)

// atrFallbackPct sizes the envelope buffers while ATR is unavailable.
const atrFallbackPct = 0.005

const (
	reasonInvalidationLevel = "closed beyond invalidation level"
	reasonFalseBreakout     = "false breakout"
	reasonAgainstDirection  = "broke against pattern direction"
)

// breakSide is the envelope side a close is beyond.
type breakSide int

const (
	sideNone breakSide = iota
	sideUp
	sideDown
)

func (b breakSide) direction() analysis.PatternDirection {
	if b == sideUp {
		return analysis.PatternBullish
	}
	return analysis.PatternBearish
}

// evaluation is the outcome of scanning bars after a candidate's anchor.
type evaluation struct {
	info    *analysis.BreakoutInfo
	expired bool
}

// evaluate scans the bars after the candidate's anchor for a close-based
// breakout and a later re-cross. Only bars up to the last supplied index are
// read.
func (s *scan) evaluate(c *analysis.Candidate) evaluation {
	switch g := c.Geometry.(type) {
	case analysis.NecklineGeometry:
		return s.evaluateNeckline(c, g)
	case analysis.EnvelopeGeometry:
		return s.evaluateEnvelope(c, g.Upper, g.Lower)
	case analysis.PoleGeometry:
		ev := s.evaluateEnvelope(c, g.Upper, g.Lower)
		if ev.info == nil && s.last-c.Range.EndIndex > s.opts.ConsolidationMaxBars {
			ev.expired = true
		}
		return ev
	default:
		return evaluation{}
	}
}

// evaluateNeckline applies the fixed percentage buffer of neckline families.
func (s *scan) evaluateNeckline(c *analysis.Candidate, g analysis.NecklineGeometry) evaluation {
	buf := s.opts.NecklineBreakBuffer
	bearish := c.Direction == analysis.PatternBearish
	var info *analysis.BreakoutInfo

	for i := c.Range.EndIndex + 1; i <= s.last; i++ {
		px := s.candles[i].Close
		if !finite(px) {
			continue
		}
		b := g.Neckline.ValueAt(float64(i))

		if info == nil {
			if inv := c.InvalidationPrice; inv != nil &&
				((bearish && px > *inv) || (!bearish && px < *inv)) {
				return evaluation{info: &analysis.BreakoutInfo{
					Invalidated:   true,
					BreakoutIndex: i,
					Reason:        reasonInvalidationLevel,
				}}
			}
			if (bearish && px < b*(1-buf)) || (!bearish && px > b*(1+buf)) {
				info = &analysis.BreakoutInfo{
					Completed:     true,
					BreakoutIndex: i,
					BreakoutPrice: px,
					Side:          c.Direction,
				}
			}
			continue
		}

		if (bearish && px > b*(1+buf)) || (!bearish && px < b*(1-buf)) {
			info.Invalidated = true
			info.Reason = reasonFalseBreakout
			break
		}
	}

	if info != nil {
		info.BarsSinceBreak = s.last - info.BreakoutIndex
	}
	return evaluation{info: info}
}

// evaluateEnvelope applies the ATR buffers of envelope families. A break is
// pending from the first close beyond the outer buffer and confirmed after
// BreakoutConfirmBars such closes; a close solidly inside resets it.
func (s *scan) evaluateEnvelope(c *analysis.Candidate, upper, lower analysis.TrendLine) evaluation {
	var (
		info         *analysis.BreakoutInfo
		pending      breakSide
		pendingStart int
		count        int
	)

	for i := c.Range.EndIndex + 1; i <= s.last; i++ {
		px := s.candles[i].Close
		if !finite(px) {
			continue
		}
		if info == nil && c.ApexIndex != nil && float64(i) > *c.ApexIndex {
			return evaluation{expired: true}
		}

		atr := indicators.At(s.atr, i, px*atrFallbackPct)
		outer := atr * s.opts.ATRBreakMultiplier
		inner := atr * s.opts.ATRInnerMultiplier
		x := float64(i)
		u, l := upper.ValueAt(x), lower.ValueAt(x)

		if info != nil {
			if (info.Side == analysis.PatternBullish && px < u-outer) ||
				(info.Side == analysis.PatternBearish && px > l+outer) {
				info.Invalidated = true
				info.Reason = reasonFalseBreakout
				break
			}
			continue
		}

		side := sideNone
		switch {
		case px > u+outer:
			side = sideUp
		case px < l-outer:
			side = sideDown
		case px < u-inner && px > l+inner:
			pending, count = sideNone, 0
			continue
		default:
			continue
		}
		if side != pending {
			pending, pendingStart, count = side, i, 0
		}
		count++
		if count < s.opts.BreakoutConfirmBars {
			continue
		}

		dir := pending.direction()
		if c.Direction != analysis.PatternNeutral && dir != c.Direction {
			return evaluation{info: &analysis.BreakoutInfo{
				Invalidated:    true,
				BreakoutIndex:  pendingStart,
				BarsSinceBreak: s.last - pendingStart,
				BreakoutPrice:  s.candles[pendingStart].Close,
				Side:           dir,
				Reason:         reasonAgainstDirection,
			}}
		}
		info = &analysis.BreakoutInfo{
			Completed:     true,
			BreakoutIndex: pendingStart,
			BreakoutPrice: s.candles[pendingStart].Close,
			Side:          dir,
		}
	}

	if info != nil {
		info.BarsSinceBreak = s.last - info.BreakoutIndex
	}
	return evaluation{info: info}
}

// assignStatus evaluates the candidate and sets its status with the
// precedence invalidated, completed_active, expired, near_completion, forming.
func (s *scan) assignStatus(c *analysis.Candidate) {
	ev := s.evaluate(c)
	c.Breakout = ev.info

	switch {
	case ev.info != nil && ev.info.Invalidated:
		c.Status = analysis.StatusInvalidated
		if ev.info.Completed {
			c.Completion = 1
		}
	case ev.info != nil && ev.info.Completed:
		c.Completion = 1
		if ev.info.BarsSinceBreak <= s.opts.MaxCompletedBars {
			c.Status = analysis.StatusCompletedActive
		} else {
			c.Status = analysis.StatusExpired
		}
	case ev.expired:
		c.Status = analysis.StatusExpired
	case s.nearCompletion(c):
		c.Status = analysis.StatusNearCompletion
	default:
		c.Status = analysis.StatusForming
	}
}

func (s *scan) nearCompletion(c *analysis.Candidate) bool {
	if c.Completion >= s.opts.NearCompletion {
		return true
	}
	if c.ApexIndex != nil {
		if d := *c.ApexIndex - float64(s.last); d >= 0 && d <= float64(s.opts.NearApexBars) {
			return true
		}
	}

	px := s.candles[s.last].Close
	if !finite(px) || s.last <= c.Range.EndIndex {
		return false
	}
	x := float64(s.last)
	near := func(b float64) bool {
		return b > 0 && math.Abs(px-b)/b <= s.opts.NearBoundaryPct
	}
	switch g := c.Geometry.(type) {
	case analysis.NecklineGeometry:
		return near(g.Neckline.ValueAt(x))
	case analysis.EnvelopeGeometry:
		return s.nearEnvelope(c.Direction, near, g.Upper.ValueAt(x), g.Lower.ValueAt(x))
	case analysis.PoleGeometry:
		return s.nearEnvelope(c.Direction, near, g.Upper.ValueAt(x), g.Lower.ValueAt(x))
	default:
		return false
	}
}

func (s *scan) nearEnvelope(dir analysis.PatternDirection, near func(float64) bool, u, l float64) bool {
	switch dir {
	case analysis.PatternBullish:
		return near(u)
	case analysis.PatternBearish:
		return near(l)
	default:
		return near(u) || near(l)
	}
}
