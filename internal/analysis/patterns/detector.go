package patterns

import (
	"github.com/rs/zerolog"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/indicators"
	"chart-patterns/internal/models"
)

// Detector runs the full chart pattern pipeline over a candle window. It holds
// only its options and logger; every call recomputes everything from the
// candles it is given, so a Detector is safe for concurrent use.
type Detector struct {
	opts   Options
	logger zerolog.Logger
}

// Diagnostics describes what a single Run saw and discarded.
type Diagnostics struct {
	Mode                 Mode                         `json:"mode"`
	Bars                 int                          `json:"bars"`
	SkippedBars          int                          `json:"skipped_bars"`
	Pivots               int                          `json:"pivots"`
	HighPivots           int                          `json:"high_pivots"`
	LowPivots            int                          `json:"low_pivots"`
	WindowsScanned       int                          `json:"windows_scanned"`
	Raw                  map[analysis.PatternType]int `json:"raw"`
	Rejections           map[string]int               `json:"rejections"`
	BelowCompletionFloor int                          `json:"below_completion_floor"`
	Merged               int                          `json:"merged"`
	Emitted              int                          `json:"emitted"`
}

func newDiagnostics(mode Mode, bars int) *Diagnostics {
	return &Diagnostics{
		Mode:       mode,
		Bars:       bars,
		Raw:        make(map[analysis.PatternType]int),
		Rejections: make(map[string]int),
	}
}

func (d *Diagnostics) reject(reason string) {
	d.Rejections[reason]++
}

// Result is the output of a detection run.
type Result struct {
	Patterns    []analysis.Candidate `json:"patterns"`
	Groups      Groups               `json:"groups"`
	Diagnostics *Diagnostics         `json:"diagnostics"`
	LastIndex   int                  `json:"last_index"`
}

// NewDetector applies defaults to opts, validates them and returns a detector.
func NewDetector(opts Options, logger zerolog.Logger) (*Detector, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		opts:   opts,
		logger: logger.With().Str("component", "patterns").Logger(),
	}, nil
}

func (d *Detector) Name() string {
	return "ChartPatternDetector"
}

// Options returns the effective options of the detector.
func (d *Detector) Options() Options {
	return d.opts
}

// Detect returns the scored candidates of a run, highest impact first.
func (d *Detector) Detect(candles []models.Candle) ([]analysis.Candidate, error) {
	res, err := d.Run(candles)
	if err != nil {
		return nil, err
	}
	return res.Patterns, nil
}

// Run detects, evaluates, deduplicates, scores and groups chart patterns.
// Windows shorter than Options.MinBars produce an empty result.
func (d *Detector) Run(candles []models.Candle) (*Result, error) {
	diag := newDiagnostics(d.opts.Mode, len(candles))
	res := &Result{
		Patterns:    []analysis.Candidate{},
		Diagnostics: diag,
		LastIndex:   len(candles) - 1,
	}
	for _, c := range candles {
		if !c.IsFinite() {
			diag.SkippedBars++
		}
	}
	if len(candles) < d.opts.MinBars {
		d.logger.Debug().Int("bars", len(candles)).Int("min_bars", d.opts.MinBars).Msg("Window too short")
		return res, nil
	}

	pivots := ExtractPivots(candles, d.opts.PivotDepth)
	s := newScan(d.opts, candles, pivots, diag)
	diag.Pivots = len(pivots)
	diag.HighPivots = len(s.highs)
	diag.LowPivots = len(s.lows)

	atr, err := indicators.NewATR(d.opts.ATRPeriod).Calculate(candles)
	if err != nil {
		d.logger.Debug().Err(err).Msg("ATR unavailable, using price fallback")
	}
	s.atr = atr

	raw := s.classify()

	kept := raw[:0]
	for i := range raw {
		c := raw[i]
		s.assignStatus(&c)
		if c.Completion < d.opts.MinCompletion {
			diag.BelowCompletionFloor++
			continue
		}
		kept = append(kept, c)
	}

	deduped := Dedup(kept)
	diag.Merged = len(kept) - len(deduped)

	lastClose := candles[s.last].Close
	for i := range deduped {
		c := &deduped[i]
		Score(c, s.last, len(candles), d.opts)
		c.Bucket = Categorize(c, lastClose, d.opts)
		c.Completion = analysis.Clamp01(c.Completion)
		c.Confidence = analysis.Clamp01(c.Confidence)
	}
	sortByImpact(deduped)

	res.Patterns = deduped
	res.Groups = group(deduped)
	diag.Emitted = len(deduped)

	d.logger.Debug().
		Str("mode", string(d.opts.Mode)).
		Int("bars", len(candles)).
		Int("pivots", len(pivots)).
		Int("raw", len(raw)).
		Int("merged", diag.Merged).
		Int("emitted", diag.Emitted).
		Msg("Pattern detection complete")

	return res, nil
}
