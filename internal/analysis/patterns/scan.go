package patterns

import (
	"math"
	"sort"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// scan holds the state of a single detection call. Nothing in it outlives Run.
type scan struct {
	opts    Options
	candles []models.Candle
	pivots  []analysis.Pivot
	highs   []analysis.Pivot
	lows    []analysis.Pivot
	atr     []float64
	last    int
	diag    *Diagnostics
}

func newScan(opts Options, candles []models.Candle, pivots []analysis.Pivot, diag *Diagnostics) *scan {
	highs, lows := splitPivots(pivots)
	return &scan{
		opts:    opts,
		candles: candles,
		pivots:  pivots,
		highs:   highs,
		lows:    lows,
		last:    len(candles) - 1,
		diag:    diag,
	}
}

// classify runs every enabled family classifier.
func (s *scan) classify() []analysis.Candidate {
	var out []analysis.Candidate

	add := func(t analysis.PatternType, fn func() []analysis.Candidate) {
		if !s.opts.Enabled(t) {
			return
		}
		found := fn()
		s.diag.Raw[t] += len(found)
		out = append(out, found...)
	}

	add(analysis.DoubleTop, func() []analysis.Candidate { return s.doubles(analysis.PivotHigh) })
	add(analysis.DoubleBottom, func() []analysis.Candidate { return s.doubles(analysis.PivotLow) })
	add(analysis.HeadAndShoulders, func() []analysis.Candidate { return s.headAndShoulders(analysis.PivotHigh) })
	add(analysis.InverseHeadAndShoulders, func() []analysis.Candidate { return s.headAndShoulders(analysis.PivotLow) })
	add(analysis.TripleTop, func() []analysis.Candidate { return s.triples(analysis.PivotHigh) })
	add(analysis.TripleBottom, func() []analysis.Candidate { return s.triples(analysis.PivotLow) })

	if s.opts.Enabled(analysis.TriangleAscending) || s.opts.Enabled(analysis.TriangleDescending) ||
		s.opts.Enabled(analysis.TriangleSymmetrical) {
		for _, c := range s.triangles() {
			if s.opts.Enabled(c.Type) {
				s.diag.Raw[c.Type]++
				out = append(out, c)
			}
		}
	}
	if s.opts.Enabled(analysis.RisingWedge) || s.opts.Enabled(analysis.FallingWedge) {
		for _, c := range s.wedges() {
			if s.opts.Enabled(c.Type) {
				s.diag.Raw[c.Type]++
				out = append(out, c)
			}
		}
	}
	if s.opts.Enabled(analysis.Pennant) || s.opts.Enabled(analysis.Flag) {
		for _, c := range s.poles() {
			if s.opts.Enabled(c.Type) {
				s.diag.Raw[c.Type]++
				out = append(out, c)
			}
		}
	}

	return out
}

// extreme returns the wick extreme the classifiers compare for a pivot kind.
func (s *scan) extreme(idx int, kind analysis.PivotKind) float64 {
	if kind == analysis.PivotHigh {
		return s.candles[idx].High
	}
	return s.candles[idx].Low
}

// provisionalExtreme returns the most extreme unconfirmed bar after index from.
func (s *scan) provisionalExtreme(from int, kind analysis.PivotKind) (int, bool) {
	best := -1
	for i := from + 1; i <= s.last; i++ {
		c := s.candles[i]
		if !c.IsFinite() {
			continue
		}
		if best < 0 ||
			(kind == analysis.PivotHigh && c.High > s.candles[best].High) ||
			(kind == analysis.PivotLow && c.Low < s.candles[best].Low) {
			best = i
		}
	}
	return best, best >= 0
}

func (s *scan) pivotAt(idx int, kind analysis.PivotKind) analysis.Pivot {
	return analysis.Pivot{Index: idx, Price: s.candles[idx].Close, Kind: kind}
}

// closesTrend returns +1 when the last three finite closes rise strictly,
// -1 when they fall strictly and 0 otherwise.
func (s *scan) closesTrend() int {
	closes := make([]float64, 0, 3)
	for i := s.last; i >= 0 && len(closes) < 3; i-- {
		if c := s.candles[i].Close; finite(c) {
			closes = append(closes, c)
		}
	}
	if len(closes) < 3 {
		return 0
	}
	// closes is newest first
	switch {
	case closes[0] > closes[1] && closes[1] > closes[2]:
		return 1
	case closes[0] < closes[1] && closes[1] < closes[2]:
		return -1
	default:
		return 0
	}
}

// trendBonus is the small completion nudge from the last three closes moving
// toward (up == true means upward) or away from confirmation.
func (s *scan) trendBonus(up bool) float64 {
	t := s.closesTrend()
	if !up {
		t = -t
	}
	return trendBonusStep * float64(t)
}

const (
	trendBonusStep = 0.05

	confirmedBase   = 0.6
	confirmedWeight = 0.3
	provisionalBase = 0.3
	provisionalSpan = 0.5

	marginWeight   = 0.4
	symmetryWeight = 0.3
	durationWeight = 0.3

	provisionalPenalty = 0.85
	shoulderPenalty    = 0.8
)

// completionScore blends proximity of the open point with the trend bonus.
func completionScore(proximity float64, provisional bool, bonus float64) float64 {
	base := confirmedBase + confirmedWeight*analysis.Clamp01(proximity)
	if provisional {
		base = provisionalBase + provisionalSpan*analysis.Clamp01(proximity)
	}
	return analysis.Clamp01(base + bonus)
}

// confidenceScore blends tolerance margin, symmetry and duration and applies
// the per-type reliability factor.
func confidenceScore(t analysis.PatternType, margin, symmetry, duration float64) float64 {
	raw := marginWeight*analysis.Clamp01(margin) +
		symmetryWeight*analysis.Clamp01(symmetry) +
		durationWeight*analysis.Clamp01(duration)
	return analysis.Clamp01(raw * t.Reliability())
}

// durationScore is 1 inside the type's typical band and decays outside it.
func durationScore(t analysis.PatternType, bars int) float64 {
	lo, hi := t.TypicalBars()
	switch {
	case bars <= 0:
		return 0
	case bars < lo:
		return float64(bars) / float64(lo)
	case bars > hi:
		return float64(hi) / float64(bars)
	default:
		return 1
	}
}

// symmetryScore compares two spans.
func symmetryScore(a, b float64) float64 {
	a, b = math.Abs(a), math.Abs(b)
	if a == 0 || b == 0 {
		return 0
	}
	return math.Min(a, b) / math.Max(a, b)
}

// pctDiff is |a-b| relative to the larger magnitude.
func pctDiff(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 0
	}
	return math.Abs(a-b) / m
}

type slopeDir int

const (
	dirFlat slopeDir = iota
	dirRising
	dirFalling
)

// direction classifies the move from first to last against a tolerance.
func direction(first, last, tol float64) slopeDir {
	switch {
	case pctDiff(first, last) <= tol:
		return dirFlat
	case last > first:
		return dirRising
	default:
		return dirFalling
	}
}

func meanPrice(pivots []analysis.Pivot) float64 {
	var sum float64
	for _, p := range pivots {
		sum += p.Price
	}
	return sum / float64(len(pivots))
}

func keyPivots(role analysis.PivotRole, pivots []analysis.Pivot) []analysis.KeyPivot {
	out := make([]analysis.KeyPivot, len(pivots))
	for i, p := range pivots {
		out[i] = analysis.KeyPivot{Role: role, Pivot: p}
	}
	return out
}

// sortKeyPivots orders key pivots by bar index.
func sortKeyPivots(kps []analysis.KeyPivot) []analysis.KeyPivot {
	sort.SliceStable(kps, func(i, j int) bool { return kps[i].Pivot.Index < kps[j].Pivot.Index })
	return kps
}
