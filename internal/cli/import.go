package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/store"
)

func newImportCmd(app *App) *cobra.Command {
	var (
		csvPath   string
		symbol    string
		timeframe string
	)

	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Import candles from a CSV file into the store",
		Long:    "Import candles from a CSV file with a timestamp,open,high,low,close,volume header.",
		Example: `  patterns import --csv infy.csv --symbol INFY --timeframe 1day`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if csvPath == "" {
				return apperrors.NewValidationError("csv", csvPath, "required")
			}
			if symbol == "" {
				return apperrors.NewValidationError("symbol", symbol, "required")
			}
			logger := logging.WithOperation(logging.WithSeries(app.Logger, symbol, timeframe), "import")

			file, err := os.Open(csvPath)
			if err != nil {
				return apperrors.Wrapf(err, "opening %s", csvPath)
			}
			defer file.Close()

			candles, err := store.ImportCSV(file)
			if err != nil {
				logging.LogImport(logger, csvPath, 0, err)
				return err
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			if err := s.SaveCandles(ctx, symbol, timeframe, candles); err != nil {
				logging.LogImport(logger, csvPath, 0, err)
				return err
			}
			logging.LogImport(logger, csvPath, len(candles), nil)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": timeframe,
					"imported":  len(candles),
				})
			}
			output.Success("Imported %d candles for %s %s", len(candles), symbol, timeframe)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to import")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to store the candles under")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1day", "candle timeframe")

	return cmd
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored candle series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			series, err := s.ListSeries(ctx)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(series)
			}
			if len(series) == 0 {
				output.Warning("No candles stored. Use 'patterns import' to add some.")
				return nil
			}
			table := NewTable(output, "SYMBOL", "TIMEFRAME", "CANDLES", "FIRST", "LAST")
			for _, info := range series {
				table.AddRow(
					info.Symbol,
					info.Timeframe,
					fmt.Sprint(info.Count),
					info.First.Format("2006-01-02 15:04"),
					info.Last.Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	}
}
