package aftermath

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/patterns"
	"chart-patterns/internal/models"
)

// DefaultMaxExamples is the number of examples kept per pattern type.
const DefaultMaxExamples = 3

// Enricher reruns detection over a longer history, one pattern type at a
// time, and measures what followed each completed pattern.
type Enricher struct {
	opts        patterns.Options
	analyzer    *Analyzer
	logger      zerolog.Logger
	Lookback    int
	MaxExamples int
}

// NewEnricher creates an enricher. Detection always runs in completed mode with
// completed-mode tolerances unless opts sets its own; the remaining options are
// taken from opts.
func NewEnricher(opts patterns.Options, analyzer *Analyzer, logger zerolog.Logger) *Enricher {
	opts = opts.WithMode(patterns.ModeCompleted)
	opts.ProvisionalPivots = false
	opts.MinCompletion = 0
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	return &Enricher{
		opts:        opts,
		analyzer:    analyzer,
		logger:      logger.With().Str("component", "aftermath").Logger(),
		MaxExamples: DefaultMaxExamples,
	}
}

// Historical runs one detection per type in parallel over the last Lookback
// candles (all of them when Lookback is zero) and aggregates the aftermath of
// every completed pattern found.
func (e *Enricher) Historical(ctx context.Context, candles []models.Candle, types []analysis.PatternType) ([]HistoricalCaseStats, error) {
	if e.Lookback > 0 && len(candles) > e.Lookback {
		candles = candles[len(candles)-e.Lookback:]
	}

	var mu sync.Mutex
	var all []Result

	g, subCtx := errgroup.WithContext(ctx)
	for _, t := range types {
		t := t
		g.Go(func() error {
			if err := subCtx.Err(); err != nil {
				return err
			}
			results, err := e.historicalFor(candles, t)
			if err != nil {
				e.logger.Error().Err(err).Str("type", string(t)).Msg("Historical detection failed")
				return err
			}

			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := Aggregate(all, e.MaxExamples)
	e.logger.Debug().Int("types", len(types)).Int("cases", len(all)).Msg("Historical enrichment complete")
	return stats, nil
}

func (e *Enricher) historicalFor(candles []models.Candle, t analysis.PatternType) ([]Result, error) {
	opts := e.opts
	opts.Families = []analysis.PatternType{t}

	det, err := patterns.NewDetector(opts, e.logger)
	if err != nil {
		return nil, err
	}
	res, err := det.Run(candles)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, c := range res.Patterns {
		if c.Breakout == nil || !c.Breakout.Completed {
			continue
		}
		out = append(out, e.analyzer.Analyze(candles, c))
	}
	return out, nil
}
