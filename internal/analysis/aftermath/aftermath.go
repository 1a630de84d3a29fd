// Package aftermath measures what happened after completed chart patterns and
// aggregates the outcomes per pattern type.
package aftermath

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// Outcome is the qualitative result of a completed pattern.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeFailure        Outcome = "failure"
	OutcomeNoBreakout     Outcome = "no_breakout"
	// OutcomePending marks a breakout too recent for any horizon that has
	// not reached its target yet.
	OutcomePending Outcome = "pending"
)

// HorizonResult holds price behaviour a fixed number of bars after the breakout.
// Return is signed in the pattern's direction.
type HorizonResult struct {
	Bars   int     `json:"bars"`
	Return float64 `json:"return"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
}

// Result is the aftermath of one candidate.
type Result struct {
	Type          analysis.PatternType      `json:"type"`
	Direction     analysis.PatternDirection `json:"direction"`
	BreakoutIndex int                       `json:"breakout_index"`
	EntryPrice    float64                   `json:"entry_price"`
	Target        float64                   `json:"target"`
	TargetReached bool                      `json:"target_reached"`
	BarsToTarget  int                       `json:"bars_to_target,omitempty"`
	Horizons      []HorizonResult           `json:"horizons"`
	Outcome       Outcome                   `json:"outcome"`
	Move          float64                   `json:"move"`
}

// HistoricalCaseStats aggregates aftermath results of one pattern type.
type HistoricalCaseStats struct {
	Type        analysis.PatternType `json:"type"`
	Count       int                  `json:"count"`
	SuccessRate float64              `json:"success_rate"`
	AvgMove     float64              `json:"avg_move"`
	MedianMove  float64              `json:"median_move"`
	Examples    []Result             `json:"examples"`
}

// Analyzer looks forward from a breakout bar.
type Analyzer struct {
	Horizons     []int
	TargetWindow int
}

// NewAnalyzer creates an analyzer with 3, 7 and 14 bar horizons and a 14 bar
// target window.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		Horizons:     []int{3, 7, 14},
		TargetWindow: 14,
	}
}

// Analyze measures the bars after c's breakout. Candidates without a completed
// breakout report OutcomeNoBreakout.
func (a *Analyzer) Analyze(candles []models.Candle, c analysis.Candidate) Result {
	res := Result{
		Type:          c.Type,
		Direction:     c.Direction,
		BreakoutIndex: -1,
		Outcome:       OutcomeNoBreakout,
	}
	b := c.Breakout
	if b == nil || !b.Completed || b.BreakoutIndex < 0 || b.BreakoutIndex >= len(candles) {
		return res
	}
	entry := candles[b.BreakoutIndex].Close
	if !finite(entry) || entry <= 0 {
		return res
	}

	dir := c.Direction
	if dir == analysis.PatternNeutral {
		dir = b.Side
	}
	sign := 1.0
	if dir == analysis.PatternBearish {
		sign = -1
	}
	res.Direction = dir
	res.BreakoutIndex = b.BreakoutIndex
	res.EntryPrice = entry

	if c.BreakoutTarget != nil {
		res.Target = *c.BreakoutTarget
	} else {
		res.Target = entry + sign*c.Height()
	}

	last := len(candles) - 1
	for _, h := range a.Horizons {
		idx := b.BreakoutIndex + h
		if idx > last {
			break
		}
		hr := HorizonResult{Bars: h, High: math.Inf(-1), Low: math.Inf(1)}
		for i := b.BreakoutIndex + 1; i <= idx; i++ {
			if !candles[i].IsFinite() {
				continue
			}
			hr.High = math.Max(hr.High, candles[i].High)
			hr.Low = math.Min(hr.Low, candles[i].Low)
		}
		if math.IsInf(hr.High, 0) {
			hr.High, hr.Low = entry, entry
		}
		if px := candles[idx].Close; finite(px) {
			hr.Return = sign * (px - entry) / entry
		}
		res.Horizons = append(res.Horizons, hr)
	}

	end := min(b.BreakoutIndex+a.TargetWindow, last)
	for i := b.BreakoutIndex + 1; i <= end; i++ {
		cd := candles[i]
		if !cd.IsFinite() {
			continue
		}
		if (sign > 0 && cd.High >= res.Target) || (sign < 0 && cd.Low <= res.Target) {
			res.TargetReached = true
			res.BarsToTarget = i - b.BreakoutIndex
			break
		}
	}

	if n := len(res.Horizons); n > 0 {
		res.Move = res.Horizons[n-1].Return
	}
	switch {
	case res.TargetReached:
		res.Outcome = OutcomeSuccess
	case len(res.Horizons) == 0:
		res.Outcome = OutcomePending
	case res.Move > 0:
		res.Outcome = OutcomePartialSuccess
	default:
		res.Outcome = OutcomeFailure
	}
	return res
}

// Aggregate groups results by type and returns per-type statistics in type
// order. Results without a breakout or still pending are ignored. Examples are
// the maxExamples largest absolute moves.
func Aggregate(results []Result, maxExamples int) []HistoricalCaseStats {
	byType := make(map[analysis.PatternType][]Result)
	for _, r := range results {
		if r.Outcome == OutcomeNoBreakout || r.Outcome == OutcomePending {
			continue
		}
		byType[r.Type] = append(byType[r.Type], r)
	}

	var out []HistoricalCaseStats
	for _, t := range analysis.AllPatternTypes() {
		rs, ok := byType[t]
		if !ok {
			continue
		}
		moves := make([]float64, len(rs))
		var successes int
		for i, r := range rs {
			moves[i] = r.Move
			if r.Outcome == OutcomeSuccess {
				successes++
			}
		}
		sort.Float64s(moves)

		examples := append([]Result(nil), rs...)
		sort.SliceStable(examples, func(i, j int) bool {
			return math.Abs(examples[i].Move) > math.Abs(examples[j].Move)
		})
		if len(examples) > maxExamples {
			examples = examples[:maxExamples]
		}

		out = append(out, HistoricalCaseStats{
			Type:        t,
			Count:       len(rs),
			SuccessRate: float64(successes) / float64(len(rs)),
			AvgMove:     stat.Mean(moves, nil),
			MedianMove:  stat.Quantile(0.5, stat.Empirical, moves, nil),
			Examples:    examples,
		})
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
