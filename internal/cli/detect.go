package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/aftermath"
	"chart-patterns/internal/analysis/patterns"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/models"
	"chart-patterns/internal/store"
)

const defaultDetectLimit = 200

// seriesFlags are the candle source flags shared by detect and history.
type seriesFlags struct {
	symbol    string
	timeframe string
	csvPath   string
	limit     int
}

func (f *seriesFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVarP(&f.symbol, "symbol", "s", "", "symbol to analyze")
	cmd.Flags().StringVarP(&f.timeframe, "timeframe", "t", "1day", "candle timeframe")
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "read candles from a CSV file instead of the store")
	cmd.Flags().IntVar(&f.limit, "limit", defaultLimit, "number of most recent candles to analyze")
}

// load returns the series named by the flags.
func (f *seriesFlags) load(ctx context.Context, app *App, limit int) (models.Series, error) {
	series := models.Series{Symbol: f.symbol, Timeframe: f.timeframe}

	if f.csvPath != "" {
		file, err := os.Open(f.csvPath)
		if err != nil {
			return series, apperrors.Wrapf(err, "opening %s", f.csvPath)
		}
		defer file.Close()

		candles, err := store.ImportCSV(file)
		if err != nil {
			return series, err
		}
		if limit > 0 && len(candles) > limit {
			candles = candles[len(candles)-limit:]
		}
		if series.Symbol == "" {
			series.Symbol = f.csvPath
		}
		series.Candles = candles
		return series, nil
	}

	if f.symbol == "" {
		return series, apperrors.NewValidationError("symbol", f.symbol, "required unless --csv is given")
	}
	s, err := app.openStore()
	if err != nil {
		return series, err
	}
	candles, err := s.GetLatestCandles(ctx, f.symbol, f.timeframe, limit)
	if err != nil {
		return series, err
	}
	series.Candles = candles
	return series, nil
}

// detectOptions merges command line overrides into the configured options.
func detectOptions(app *App, mode, families string, minCompletion float64) (patterns.Options, error) {
	opts, err := app.Config.DetectionOptions()
	if err != nil {
		return opts, err
	}
	if mode != "" {
		// Configured options are not defaulted yet: zero fields pick up the
		// new mode's defaults and explicit settings carry over.
		opts.Mode = patterns.Mode(strings.ToLower(mode))
	}
	if families != "" {
		if opts.Families, err = patterns.ParseFamilies(families); err != nil {
			return opts, apperrors.NewValidationError("families", families, err.Error())
		}
	}
	if minCompletion > 0 {
		opts.MinCompletion = minCompletion
	}
	return opts, nil
}

// detectReport is the JSON shape of the detect command.
type detectReport struct {
	Symbol    string                          `json:"symbol"`
	Timeframe string                          `json:"timeframe"`
	Bars      int                             `json:"bars"`
	From      time.Time                       `json:"from"`
	To        time.Time                       `json:"to"`
	Result    *patterns.Result                `json:"result"`
	History   []aftermath.HistoricalCaseStats `json:"history,omitempty"`
}

func newDetectCmd(app *App) *cobra.Command {
	var (
		src           seriesFlags
		mode          string
		families      string
		minCompletion float64
		withHistory   bool
		diagnostics   bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect chart patterns in a candle series",
		Example: `  patterns detect --symbol INFY --timeframe 1day
  patterns detect --csv candles.csv --mode forming --families double_top,head_and_shoulders
  patterns detect -s INFY --history --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			opts, err := detectOptions(app, mode, families, minCompletion)
			if err != nil {
				return err
			}
			series, err := src.load(ctx, app, src.limit)
			if err != nil {
				return err
			}
			logger := logging.WithSeries(app.Logger, series.Symbol, series.Timeframe)

			detector, err := patterns.NewDetector(opts, logger)
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := detector.Run(series.Candles)
			if err != nil {
				return apperrors.NewDetectionError(series.Symbol, series.Timeframe, "detect", err)
			}
			logging.LogDetection(logger, string(detector.Options().Mode), len(series.Candles), len(result.Patterns), time.Since(start))

			report := detectReport{
				Symbol:    series.Symbol,
				Timeframe: series.Timeframe,
				Bars:      len(series.Candles),
				Result:    result,
			}
			if n := len(series.Candles); n > 0 {
				report.From = series.Candles[0].Timestamp
				report.To = series.Candles[n-1].Timestamp
			}

			if withHistory && len(result.Patterns) > 0 {
				history, err := runHistory(ctx, app, src, opts, detectedTypes(result.Patterns))
				if err != nil {
					logger.Warn().Err(err).Msg("Historical enrichment failed")
				} else {
					report.History = history
				}
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			renderDetect(output, report, diagnostics)
			return nil
		},
	}

	src.register(cmd, defaultDetectLimit)
	cmd.Flags().StringVar(&mode, "mode", "", "detection mode: completed or forming (default from config)")
	cmd.Flags().StringVar(&families, "families", "", "comma separated pattern allow-list")
	cmd.Flags().Float64Var(&minCompletion, "min-completion", 0, "drop patterns below this completion (0-1)")
	cmd.Flags().BoolVar(&withHistory, "history", false, "add historical outcomes for the detected pattern types")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "print detection diagnostics")

	return cmd
}

// detectedTypes returns the distinct pattern types of cs in first-seen order.
func detectedTypes(cs []analysis.Candidate) []analysis.PatternType {
	seen := make(map[analysis.PatternType]bool)
	var out []analysis.PatternType
	for _, c := range cs {
		if !seen[c.Type] {
			seen[c.Type] = true
			out = append(out, c.Type)
		}
	}
	return out
}

func renderDetect(output *Output, report detectReport, diagnostics bool) {
	res := report.Result
	output.Bold("%s %s: %d candles", report.Symbol, report.Timeframe, report.Bars)
	if report.Bars > 0 {
		output.Dim("%s to %s", report.From.Format("2006-01-02 15:04"), report.To.Format("2006-01-02 15:04"))
	}
	output.Println()

	if len(res.Patterns) == 0 {
		output.Warning("No patterns detected")
	} else {
		renderGroup(output, "Structural", res.Groups.Structural)
		renderGroup(output, "Short term", res.Groups.ShortTerm)
		renderGroup(output, "Watchlist", res.Groups.Watchlist)
		renderGroup(output, "Invalidated", res.Groups.Invalidated)
	}

	if len(report.History) > 0 {
		renderHistory(output, report.History)
	}

	if diagnostics {
		d := res.Diagnostics
		output.Bold("Diagnostics")
		output.Printf("  Mode: %s  Pivots: %d (%d high, %d low)  Skipped bars: %d\n",
			d.Mode, d.Pivots, d.HighPivots, d.LowPivots, d.SkippedBars)
		output.Printf("  Windows: %d  Below floor: %d  Merged: %d  Emitted: %d\n",
			d.WindowsScanned, d.BelowCompletionFloor, d.Merged, d.Emitted)
		for reason, n := range d.Rejections {
			output.Dim("  rejected %-48s %d", reason, n)
		}
	}
}

func renderGroup(output *Output, title string, cs []analysis.Candidate) {
	if len(cs) == 0 {
		return
	}
	output.Bold("%s (%d)", title, len(cs))
	table := NewTable(output, "TYPE", "DIRECTION", "STATUS", "COMPLETION", "CONFIDENCE", "RANGE", "TARGET", "IMPACT")
	for _, c := range cs {
		target := "-"
		if c.BreakoutTarget != nil {
			target = fmt.Sprintf("%.2f", *c.BreakoutTarget)
		}
		table.AddRow(
			string(c.Type),
			output.Direction(c.Direction),
			output.Status(c.Status),
			output.Percent(c.Completion),
			output.Percent(c.Confidence),
			fmt.Sprintf("%d-%d", c.Range.StartIndex, c.Range.EndIndex),
			target,
			fmt.Sprintf("%.2f", c.ImpactScore),
		)
	}
	table.Render()
	for _, c := range cs {
		for _, w := range c.Warnings {
			output.Dim("  %s: %s", c.Type, w)
		}
	}
	output.Println()
}
