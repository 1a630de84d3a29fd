package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/aftermath"
	"chart-patterns/internal/analysis/patterns"
	"chart-patterns/internal/logging"
)

// runHistory loads the configured lookback of candles and aggregates the
// aftermath of completed patterns of the given types.
func runHistory(ctx context.Context, app *App, src seriesFlags, opts patterns.Options, types []analysis.PatternType) ([]aftermath.HistoricalCaseStats, error) {
	lookback := app.Config.History.Lookback
	series, err := src.load(ctx, app, lookback)
	if err != nil {
		return nil, err
	}
	logger := logging.WithOperation(logging.WithSeries(app.Logger, series.Symbol, series.Timeframe), "history")

	enricher := aftermath.NewEnricher(opts, aftermath.NewAnalyzer(), logger)
	enricher.Lookback = lookback
	if app.Config.History.MaxExamples > 0 {
		enricher.MaxExamples = app.Config.History.MaxExamples
	}
	return enricher.Historical(ctx, series.Candles, types)
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		src      seriesFlags
		families string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show how completed patterns played out historically",
		Example: `  patterns history --symbol INFY --timeframe 1day
  patterns history --csv candles.csv --families double_top,double_bottom --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			opts, err := detectOptions(app, string(patterns.ModeCompleted), families, 0)
			if err != nil {
				return err
			}
			types := opts.Families
			if len(types) == 0 {
				types = analysis.AllPatternTypes()
			}
			if src.limit > 0 {
				app.Config.History.Lookback = src.limit
			}

			stats, err := runHistory(ctx, app, src, opts, types)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(stats)
			}
			if len(stats) == 0 {
				output.Warning("No completed patterns in the lookback window")
				return nil
			}
			renderHistory(output, stats)
			return nil
		},
	}

	src.register(cmd, 0)
	cmd.Flags().Lookup("limit").Usage = "lookback in candles (default from config)"
	cmd.Flags().StringVar(&families, "families", "", "comma separated pattern allow-list")

	return cmd
}

func renderHistory(output *Output, stats []aftermath.HistoricalCaseStats) {
	output.Bold("Historical outcomes")
	table := NewTable(output, "TYPE", "COUNT", "SUCCESS", "AVG MOVE", "MEDIAN MOVE")
	for _, s := range stats {
		table.AddRow(
			string(s.Type),
			fmt.Sprint(s.Count),
			output.Percent(s.SuccessRate),
			output.SignedPercent(s.AvgMove),
			output.SignedPercent(s.MedianMove),
		)
	}
	table.Render()

	for _, s := range stats {
		for _, ex := range s.Examples {
			reached := "target missed"
			if ex.TargetReached {
				reached = fmt.Sprintf("target in %d bars", ex.BarsToTarget)
			}
			output.Dim("  %s at bar %d: %s, %s (%s)", s.Type, ex.BreakoutIndex, output.SignedPercent(ex.Move), ex.Outcome, reached)
		}
	}
	output.Println()
}
