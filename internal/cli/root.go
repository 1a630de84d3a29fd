package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chart-patterns/internal/config"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     store.CandleStore
}

// NewRootCmd creates the root command for the CLI. When cfg is nil the
// configuration is loaded from the --config directory before any command runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "patterns",
		Short: "Chart pattern detection over OHLCV candles",
		Long: `patterns detects classical chart patterns (double tops and bottoms,
head-and-shoulders, triangles, wedges, pennants, flags, triple tops and bottoms)
in candle series, reports their lifecycle status and measures how similar
patterns played out historically.

Candles come from a CSV file or from the local SQLite store (see 'patterns import').`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(loaded.LogConfig())
			}

			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.Store != nil {
				return app.Store.Close()
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/chart-patterns)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newListCmd(app))

	return rootCmd
}

// openStore opens the candle store on first use.
func (a *App) openStore() (store.CandleStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.DBPath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.DBPath).Msg("SQLite store initialized")
	a.Store = s
	return s, nil
}

func (a *App) configDir() string {
	if a.ConfigDir != "" {
		return a.ConfigDir
	}
	return config.DefaultConfigDir()
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("patterns v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := filepath.Join(app.configDir(), "config.toml")
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if _, err := app.Config.DetectionOptions(); err != nil {
				output.Error("Detection options invalid: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	d := cfg.Detection
	output.Bold("Detection")
	output.Printf("  Mode:             %s\n", d.Mode)
	output.Printf("  Families:         %s\n", familiesLabel(d.Families))
	output.Printf("  Min Completion:   %.2f\n", d.MinCompletion)
	output.Printf("  Pivot Depth:      %s\n", orDefault(d.PivotDepth))
	output.Printf("  Tolerance:        %s\n", orDefaultFloat(d.Tolerance))
	output.Printf("  Max Completed:    %s bars\n", orDefault(d.MaxCompletedBars))
	output.Printf("  Freshness Window: %s bars\n", orDefault(d.MaxBarsFromLastPivot))
	output.Println()

	output.Bold("History")
	output.Printf("  Lookback:         %d candles\n", cfg.History.Lookback)
	output.Printf("  Max Examples:     %d\n", cfg.History.MaxExamples)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:         %s\n", cfg.Store.DBPath)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  File:             %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)

	return nil
}

func familiesLabel(f []string) string {
	if len(f) == 0 {
		return "all"
	}
	return fmt.Sprint(f)
}

func orDefault(v int) string {
	if v == 0 {
		return "default"
	}
	return fmt.Sprint(v)
}

func orDefaultFloat(v float64) string {
	if v == 0 {
		return "default"
	}
	return fmt.Sprintf("%.4f", v)
}
