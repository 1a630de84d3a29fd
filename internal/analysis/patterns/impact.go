package patterns

import (
	"math"
	"sort"

	"chart-patterns/internal/analysis"
)

// Impact weights.
const (
	impactFreshness  = 0.30
	impactCompletion = 0.30
	impactType       = 0.25
	impactScale      = 0.15

	coveragePenalty = 0.7

	structuralImpact   = 0.65
	shortTermFreshness = 0.6
	shortTermAmplitude = 0.05
)

// Groups is the bucketed view of a result.
type Groups struct {
	ShortTerm   []analysis.Candidate `json:"short_term"`
	Structural  []analysis.Candidate `json:"structural"`
	Watchlist   []analysis.Candidate `json:"watchlist"`
	Invalidated []analysis.Candidate `json:"invalidated"`
}

// Len returns the number of grouped candidates.
func (g Groups) Len() int {
	return len(g.ShortTerm) + len(g.Structural) + len(g.Watchlist) + len(g.Invalidated)
}

// Score sets Freshness and ImpactScore of c for a window of windowBars bars
// whose last index is last.
func Score(c *analysis.Candidate, last, windowBars int, opts Options) {
	since := float64(last - c.LastPivotIndex())
	if since < 0 {
		since = 0
	}
	c.Freshness = 1 - math.Min(1, since/float64(opts.MaxBarsFromLastPivot))

	bars := float64(c.Range.Bars())
	scale := analysis.Clamp01(bars / float64(opts.ScaleReferenceBars))
	impact := impactFreshness*c.Freshness +
		impactCompletion*c.Completion +
		impactType*c.Type.Importance() +
		impactScale*scale

	if windowBars > 0 {
		coverage := bars / float64(windowBars)
		if coverage < opts.CoverageMin || coverage > opts.CoverageMax {
			impact *= coveragePenalty
		}
	}
	c.ImpactScore = analysis.Clamp01(impact)
}

// Categorize assigns the presentation bucket of a scored candidate given the
// last close of the window.
func Categorize(c *analysis.Candidate, lastClose float64, opts Options) analysis.Bucket {
	if c.Status == analysis.StatusInvalidated {
		return analysis.BucketInvalidated
	}
	if inv := c.InvalidationPrice; inv != nil && *inv != 0 && finite(lastClose) &&
		math.Abs(lastClose-*inv)/math.Abs(*inv) <= opts.NearInvalidationPct {
		return analysis.BucketInvalidated
	}
	if c.ImpactScore >= structuralImpact {
		return analysis.BucketStructural
	}
	if c.Freshness >= shortTermFreshness && finite(lastClose) && lastClose > 0 {
		amplitude := c.Height() / lastClose * float64(c.Range.Bars()) / float64(opts.ScaleReferenceBars)
		if amplitude < shortTermAmplitude {
			return analysis.BucketShortTerm
		}
	}
	return analysis.BucketWatchlist
}

// group splits candidates by bucket, keeping their order.
func group(cs []analysis.Candidate) Groups {
	var g Groups
	for _, c := range cs {
		switch c.Bucket {
		case analysis.BucketInvalidated:
			g.Invalidated = append(g.Invalidated, c)
		case analysis.BucketStructural:
			g.Structural = append(g.Structural, c)
		case analysis.BucketShortTerm:
			g.ShortTerm = append(g.ShortTerm, c)
		default:
			g.Watchlist = append(g.Watchlist, c)
		}
	}
	return g
}

// sortByImpact orders candidates by impact, highest first. Ties keep range order.
func sortByImpact(cs []analysis.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].ImpactScore > cs[j].ImpactScore })
}
