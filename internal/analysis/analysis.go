// Package analysis provides the shared domain types of the chart pattern engine:
// pivots, trendlines, pattern candidates and their lifecycle labels.
package analysis

import (
	"fmt"
	"math"
	"strings"

	"chart-patterns/internal/models"
)

// PatternDetector defines the interface for chart pattern detection.
type PatternDetector interface {
	Name() string
	Detect(candles []models.Candle) ([]Candidate, error)
}

// PatternType identifies a chart pattern family.
type PatternType string

const (
	DoubleTop               PatternType = "double_top"
	DoubleBottom            PatternType = "double_bottom"
	HeadAndShoulders        PatternType = "head_and_shoulders"
	InverseHeadAndShoulders PatternType = "inverse_head_and_shoulders"
	TriangleAscending       PatternType = "triangle_ascending"
	TriangleDescending      PatternType = "triangle_descending"
	TriangleSymmetrical     PatternType = "triangle_symmetrical"
	RisingWedge             PatternType = "rising_wedge"
	FallingWedge            PatternType = "falling_wedge"
	Pennant                 PatternType = "pennant"
	Flag                    PatternType = "flag"
	TripleTop               PatternType = "triple_top"
	TripleBottom            PatternType = "triple_bottom"
)

// AllPatternTypes returns every supported pattern type in a stable order.
func AllPatternTypes() []PatternType {
	return []PatternType{
		DoubleTop, DoubleBottom,
		HeadAndShoulders, InverseHeadAndShoulders,
		TriangleAscending, TriangleDescending, TriangleSymmetrical,
		RisingWedge, FallingWedge,
		Pennant, Flag,
		TripleTop, TripleBottom,
	}
}

// ParsePatternType parses a pattern type name.
func ParsePatternType(s string) (PatternType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllPatternTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown pattern type %q", s)
}

// Family groups pattern types by the way their breakout is judged.
type Family string

const (
	// FamilyNeckline patterns break a horizontal-ish neckline by a fixed percentage.
	FamilyNeckline Family = "neckline"
	// FamilyEnvelope patterns break one side of a two-line envelope by an ATR multiple.
	FamilyEnvelope Family = "envelope"
)

// Family returns the breakout family of the pattern type.
func (t PatternType) Family() Family {
	switch t {
	case DoubleTop, DoubleBottom, HeadAndShoulders, InverseHeadAndShoulders, TripleTop, TripleBottom:
		return FamilyNeckline
	default:
		return FamilyEnvelope
	}
}

// Reliability is the fixed per-type multiplier applied to confidence.
func (t PatternType) Reliability() float64 {
	switch t {
	case HeadAndShoulders, InverseHeadAndShoulders:
		return 1.1
	case TriangleAscending, TriangleDescending, TriangleSymmetrical, Pennant, Flag:
		return 0.95
	default:
		return 1.0
	}
}

// Importance is the fixed per-type weight used by impact scoring.
func (t PatternType) Importance() float64 {
	switch t {
	case HeadAndShoulders, InverseHeadAndShoulders:
		return 1.0
	case TripleTop, TripleBottom:
		return 0.9
	case DoubleTop, DoubleBottom:
		return 0.85
	case RisingWedge, FallingWedge:
		return 0.8
	case TriangleAscending, TriangleDescending, TriangleSymmetrical:
		return 0.75
	default:
		return 0.7
	}
}

// TypicalBars returns the bar-count band in which the pattern usually forms.
func (t PatternType) TypicalBars() (lo, hi int) {
	switch t {
	case DoubleTop, DoubleBottom:
		return 10, 60
	case TripleTop, TripleBottom, HeadAndShoulders, InverseHeadAndShoulders:
		return 20, 90
	case TriangleAscending, TriangleDescending, TriangleSymmetrical:
		return 15, 60
	case RisingWedge, FallingWedge:
		return 20, 80
	default:
		return 8, 30
	}
}

// Status is the lifecycle label computed for a candidate on each call.
type Status string

const (
	StatusForming         Status = "forming"
	StatusNearCompletion  Status = "near_completion"
	StatusCompletedActive Status = "completed_active"
	StatusInvalidated     Status = "invalidated"
	StatusExpired         Status = "expired"
)

// PatternDirection represents the expected direction of a pattern.
type PatternDirection string

const (
	PatternBullish PatternDirection = "bullish"
	PatternBearish PatternDirection = "bearish"
	PatternNeutral PatternDirection = "neutral"
)

// PivotKind distinguishes swing highs from swing lows.
type PivotKind int

const (
	PivotHigh PivotKind = iota
	PivotLow
)

func (k PivotKind) String() string {
	if k == PivotHigh {
		return "high"
	}
	return "low"
}

// MarshalText implements encoding.TextMarshaler.
func (k PivotKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Pivot is a confirmed local swing extreme. Price is the bar's close.
type Pivot struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  PivotKind `json:"kind"`
}

// ConfirmedAt reports whether the pivot has at least depth bars after it as of ref.
func (p Pivot) ConfirmedAt(ref, depth int) bool {
	return ref-p.Index >= depth
}

// TrendLine is a fitted line over bar indices.
type TrendLine struct {
	Slope        float64 `json:"slope"`
	Intercept    float64 `json:"intercept"`
	RSquared     float64 `json:"r_squared"`
	TouchIndices []int   `json:"touch_indices,omitempty"`
}

// HorizontalLine returns a flat line at price.
func HorizontalLine(price float64, touches ...int) TrendLine {
	return TrendLine{Intercept: price, RSquared: 1, TouchIndices: touches}
}

// ValueAt returns the line value at bar x.
func (l TrendLine) ValueAt(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// Intersect returns the x coordinate where two lines cross.
func Intersect(a, b TrendLine) (float64, bool) {
	d := a.Slope - b.Slope
	if d == 0 || math.IsNaN(d) {
		return 0, false
	}
	return (b.Intercept - a.Intercept) / d, true
}

// Range is an inclusive bar-index span.
type Range struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// Bars returns EndIndex - StartIndex.
func (r Range) Bars() int {
	return r.EndIndex - r.StartIndex
}

// Overlap returns the number of bars shared with o.
func (r Range) Overlap(o Range) int {
	lo := r.StartIndex
	if o.StartIndex > lo {
		lo = o.StartIndex
	}
	hi := r.EndIndex
	if o.EndIndex < hi {
		hi = o.EndIndex
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// PivotRole tags the part a pivot plays in a pattern.
type PivotRole string

const (
	RoleLeftPeak      PivotRole = "left_peak"
	RoleRightPeak     PivotRole = "right_peak"
	RoleMiddle        PivotRole = "middle"
	RoleLeftShoulder  PivotRole = "left_shoulder"
	RoleHead          PivotRole = "head"
	RoleRightShoulder PivotRole = "right_shoulder"
	RoleNeckLeft      PivotRole = "neck_left"
	RoleNeckRight     PivotRole = "neck_right"
	RoleFirst         PivotRole = "first"
	RoleSecond        PivotRole = "second"
	RoleThird         PivotRole = "third"
	RoleUpperTouch    PivotRole = "upper_touch"
	RoleLowerTouch    PivotRole = "lower_touch"
	RolePoleStart     PivotRole = "pole_start"
	RolePoleEnd       PivotRole = "pole_end"
)

// KeyPivot is a role-tagged pivot of a candidate.
type KeyPivot struct {
	Role        PivotRole `json:"role"`
	Pivot       Pivot     `json:"pivot"`
	Provisional bool      `json:"provisional,omitempty"`
}

// Geometry is the family-specific shape of a candidate. The set of
// implementations is closed: NecklineGeometry, EnvelopeGeometry and PoleGeometry.
type Geometry interface {
	geometry()
	Kind() string
}

// NecklineGeometry backs double, triple and head-and-shoulders patterns.
type NecklineGeometry struct {
	Neckline TrendLine `json:"neckline"`
	Height   float64   `json:"height"`
}

// EnvelopeGeometry backs triangles and wedges.
type EnvelopeGeometry struct {
	Upper       TrendLine `json:"upper"`
	Lower       TrendLine `json:"lower"`
	SpreadStart float64   `json:"spread_start"`
	SpreadEnd   float64   `json:"spread_end"`
	Score       float64   `json:"score,omitempty"`
}

// PoleGeometry backs pennants and flags.
type PoleGeometry struct {
	PoleStart int       `json:"pole_start"`
	PoleEnd   int       `json:"pole_end"`
	PoleMove  float64   `json:"pole_move"`
	PoleSize  float64   `json:"pole_size"`
	Upper     TrendLine `json:"upper"`
	Lower     TrendLine `json:"lower"`
}

func (NecklineGeometry) geometry() {}
func (EnvelopeGeometry) geometry() {}
func (PoleGeometry) geometry()     {}

func (NecklineGeometry) Kind() string { return "neckline" }
func (EnvelopeGeometry) Kind() string { return "envelope" }
func (PoleGeometry) Kind() string     { return "pole" }

// BreakoutInfo is attached to a candidate after breakout evaluation.
type BreakoutInfo struct {
	Completed      bool             `json:"completed"`
	Invalidated    bool             `json:"invalidated"`
	BreakoutIndex  int              `json:"breakout_index"`
	BarsSinceBreak int              `json:"bars_since_break"`
	BreakoutPrice  float64          `json:"breakout_price,omitempty"`
	Side           PatternDirection `json:"side,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// Bucket is the presentation group of a scored candidate.
type Bucket string

const (
	BucketShortTerm   Bucket = "short_term"
	BucketStructural  Bucket = "structural"
	BucketWatchlist   Bucket = "watchlist"
	BucketInvalidated Bucket = "invalidated"
)

// Candidate is a detected (complete or still forming) chart pattern.
type Candidate struct {
	Type              PatternType      `json:"type"`
	Direction         PatternDirection `json:"direction"`
	Status            Status           `json:"status"`
	Completion        float64          `json:"completion"`
	Confidence        float64          `json:"confidence"`
	Range             Range            `json:"range"`
	KeyPivots         []KeyPivot       `json:"key_pivots"`
	Geometry          Geometry         `json:"geometry"`
	BreakoutTarget    *float64         `json:"breakout_target,omitempty"`
	InvalidationPrice *float64         `json:"invalidation_price,omitempty"`
	ApexIndex         *float64         `json:"apex_index,omitempty"`
	Breakout          *BreakoutInfo    `json:"breakout,omitempty"`
	Provisional       bool             `json:"provisional,omitempty"`
	Freshness         float64          `json:"freshness"`
	ImpactScore       float64          `json:"impact_score"`
	Bucket            Bucket           `json:"bucket,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
}

// Height returns the measured-move height of the candidate.
func (c *Candidate) Height() float64 {
	switch g := c.Geometry.(type) {
	case NecklineGeometry:
		return g.Height
	case EnvelopeGeometry:
		return g.SpreadStart
	case PoleGeometry:
		return g.PoleSize
	default:
		return 0
	}
}

// LastPivotIndex returns the index of the most recent defining pivot.
func (c *Candidate) LastPivotIndex() int {
	last := c.Range.EndIndex
	for _, kp := range c.KeyPivots {
		if kp.Pivot.Index > last {
			last = kp.Pivot.Index
		}
	}
	return last
}

// AddWarning appends a warning once.
func (c *Candidate) AddWarning(msg string) {
	for _, w := range c.Warnings {
		if w == msg {
			return
		}
	}
	c.Warnings = append(c.Warnings, msg)
}

// Clamp01 limits x to [0, 1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
