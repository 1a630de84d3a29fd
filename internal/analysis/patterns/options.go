// Package patterns provides chart pattern detection: swing pivots, trendline
// fitting, per-family classifiers, breakout evaluation, deduplication and
// impact scoring.
package patterns

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"chart-patterns/internal/analysis"
	apperrors "chart-patterns/internal/errors"
)

// Mode selects the precision/recall tradeoff of the classifiers.
type Mode string

const (
	// ModeCompleted uses strict tolerances and confirmed pivots only.
	ModeCompleted Mode = "completed"
	// ModeForming uses looser tolerances and allows provisional pivots.
	ModeForming Mode = "forming"
)

const (
	formingTolerance      = 0.035
	formingMinBarsBetween = 4
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Options configures a detection call. Zero-valued fields take the defaults
// from the struct tags; forming mode substitutes its own looser defaults first.
// Zero therefore always means "default", and validation requires every
// defaulted threshold to be positive.
type Options struct {
	Mode          Mode                   `default:"completed" validate:"oneof=completed forming"`
	Families      []analysis.PatternType `validate:"dive,required"`
	MinCompletion float64                `validate:"gte=0,lte=1"`
	MinBars       int                    `default:"20" validate:"gte=5"`

	// Pivots and shared geometry
	PivotDepth             int     `default:"3" validate:"gte=1,lte=20"`
	Tolerance              float64 `default:"0.02" validate:"gt=0,lt=0.5"`
	MinDepth               float64 `default:"0.03" validate:"gt=0,lt=1"`
	HeadMinExcess          float64 `default:"0.05" validate:"gt=0,lt=1"`
	NecklineSlopeTolerance float64 `default:"0.002" validate:"gt=0"`
	MinBarsBetween         int     `default:"5" validate:"gte=1"`
	MaxPatternBars         int     `default:"150" validate:"gte=10"`
	MinR2                  float64 `default:"0.2" validate:"gte=0,lte=1"`
	ProvisionalPivots      bool

	// Window scans
	WindowStep             int     `default:"5" validate:"gte=1"`
	TriangleWindows        []int   `default:"[20,30,45,60]" validate:"min=1,dive,gte=10"`
	TriangleMaxSpreadRatio float64 `default:"0.8" validate:"gt=0,lt=1"`
	WedgeWindows           []int   `default:"[20,30,40,60]" validate:"min=1,dive,gte=10"`
	WedgeMinSlopeRatio     float64 `default:"1.1" validate:"gte=1"`
	WedgeMaxSlopeRatio     float64 `default:"3.0" validate:"gtfield=WedgeMinSlopeRatio"`
	WedgeTouchTolerance    float64 `default:"0.005" validate:"gt=0,lt=0.1"`
	WedgeMaxTouchGap       int     `default:"25" validate:"gte=1"`
	WedgeFirstTouchAlign   int     `default:"10" validate:"gte=1"`
	WedgeMaxConvergence    float64 `default:"0.8" validate:"gt=0,lt=1"`
	WedgeMinScore          float64 `default:"0.4" validate:"gte=0,lte=1"`

	// Pennants and flags
	PoleMinMove             float64 `default:"0.08" validate:"gt=0"`
	PoleLookback            int     `default:"10" validate:"gte=2"`
	ConsolidationMinBars    int     `default:"5" validate:"gte=3"`
	ConsolidationMaxBars    int     `default:"20" validate:"gtefield=ConsolidationMinBars"`
	ConsolidationMaxRetrace float64 `default:"0.5" validate:"gt=0,lte=1"`
	FlagParallelTolerance   float64 `default:"0.5" validate:"gt=0"`

	// Breakout evaluation
	NecklineBreakBuffer float64 `default:"0.02" validate:"gt=0,lt=0.5"`
	ATRPeriod           int     `default:"14" validate:"gte=1"`
	ATRBreakMultiplier  float64 `default:"0.5" validate:"gt=0"`
	ATRInnerMultiplier  float64 `default:"0.2" validate:"gt=0,ltfield=ATRBreakMultiplier"`
	BreakoutConfirmBars int     `default:"2" validate:"gte=1"`
	MaxCompletedBars    int     `default:"10" validate:"gte=1"`
	NearCompletion      float64 `default:"0.8" validate:"gt=0,lte=1"`
	NearApexBars        int     `default:"5" validate:"gte=1"`
	NearBoundaryPct     float64 `default:"0.01" validate:"gt=0"`

	// Impact scoring
	MaxBarsFromLastPivot int     `default:"20" validate:"gte=1"`
	ScaleReferenceBars   int     `default:"60" validate:"gte=1"`
	CoverageMin          float64 `default:"0.05" validate:"gte=0,lt=1"`
	CoverageMax          float64 `default:"0.9" validate:"gtfield=CoverageMin,lte=1"`
	NearInvalidationPct  float64 `default:"0.01" validate:"gt=0"`
}

// DefaultOptions returns the defaults for the given mode.
func DefaultOptions(mode Mode) Options {
	opts := Options{Mode: mode}
	// The struct tags are static, so Set cannot fail here.
	_ = opts.applyDefaults()
	return opts
}

// WithMode returns a copy of o switched to mode m. Tolerance and pivot spacing
// still holding the previous mode's defaults are cleared so that m's defaults
// apply; explicitly chosen values are kept.
func (o Options) WithMode(m Mode) Options {
	cur := o.Mode
	if cur == "" {
		cur = ModeCompleted
	}
	if cur == m {
		o.Mode = m
		return o
	}
	prev := DefaultOptions(cur)
	if o.Tolerance == prev.Tolerance {
		o.Tolerance = 0
	}
	if o.MinBarsBetween == prev.MinBarsBetween {
		o.MinBarsBetween = 0
	}
	o.ProvisionalPivots = false
	o.Mode = m
	return o
}

func (o *Options) applyDefaults() error {
	if o.Mode == ModeForming {
		if o.Tolerance == 0 {
			o.Tolerance = formingTolerance
		}
		if o.MinBarsBetween == 0 {
			o.MinBarsBetween = formingMinBarsBetween
		}
		o.ProvisionalPivots = true
	}
	return defaults.Set(o)
}

// Validate checks option ranges and the family allow-list.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: detection options: %v", apperrors.ErrConfigInvalid, err)
	}
	for _, f := range o.Families {
		if _, err := analysis.ParsePatternType(string(f)); err != nil {
			return fmt.Errorf("%w: detection options: %v", apperrors.ErrConfigInvalid, err)
		}
	}
	return nil
}

// Enabled reports whether t is in the allow-list. An empty list allows all.
func (o *Options) Enabled(t analysis.PatternType) bool {
	if len(o.Families) == 0 {
		return true
	}
	for _, f := range o.Families {
		if f == t {
			return true
		}
	}
	return false
}

// ParseFamilies parses a comma separated allow-list.
func ParseFamilies(s string) ([]analysis.PatternType, error) {
	var out []analysis.PatternType
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := analysis.ParsePatternType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
