// Package config provides configuration management for the pattern detector.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"chart-patterns/internal/analysis/patterns"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Detection DetectionConfig `mapstructure:"detection"`
	History   HistoryConfig   `mapstructure:"history"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DetectionConfig holds the file-level detection settings. Zero values fall
// back to the engine defaults for the selected mode.
type DetectionConfig struct {
	Mode                 string   `mapstructure:"mode" validate:"oneof=completed forming"`
	Families             []string `mapstructure:"families"`
	MinCompletion        float64  `mapstructure:"min_completion" validate:"gte=0,lte=1"`
	PivotDepth           int      `mapstructure:"pivot_depth" validate:"gte=0,lte=20"`
	Tolerance            float64  `mapstructure:"tolerance" validate:"gte=0,lt=0.5"`
	MaxCompletedBars     int      `mapstructure:"max_completed_bars" validate:"gte=0"`
	MaxBarsFromLastPivot int      `mapstructure:"max_bars_from_last_pivot" validate:"gte=0"`
	MinBars              int      `mapstructure:"min_bars" validate:"gte=0"`
}

// HistoryConfig holds historical enrichment settings.
type HistoryConfig struct {
	Lookback    int `mapstructure:"lookback" validate:"gte=1"`
	MaxExamples int `mapstructure:"max_examples" validate:"gte=1,lte=20"`
}

// StoreConfig holds the candle store settings.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path" validate:"required"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
}

var validate = validator.New()

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/chart-patterns"
	}
	return filepath.Join(home, ".config", "chart-patterns")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and then read.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("detection.mode", string(patterns.ModeCompleted))
	v.SetDefault("detection.min_completion", 0.0)
	v.SetDefault("history.lookback", 500)
	v.SetDefault("history.max_examples", 3)
	v.SetDefault("store.db_path", filepath.Join(configDir, "candles.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "patterns.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and read it back
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PATTERNS_MODE"); v != "" {
		cfg.Detection.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("PATTERNS_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("PATTERNS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	if _, err := patterns.ParseFamilies(strings.Join(c.Detection.Families, ",")); err != nil {
		return apperrors.NewValidationError("detection.families", c.Detection.Families, err.Error())
	}
	return nil
}

// DetectionOptions converts the detection section into engine options.
// Unset values take the engine defaults of the configured mode.
func (c *Config) DetectionOptions() (patterns.Options, error) {
	families, err := patterns.ParseFamilies(strings.Join(c.Detection.Families, ","))
	if err != nil {
		return patterns.Options{}, err
	}

	d := c.Detection
	return patterns.Options{
		Mode:                 patterns.Mode(d.Mode),
		Families:             families,
		MinCompletion:        d.MinCompletion,
		MinBars:              d.MinBars,
		PivotDepth:           d.PivotDepth,
		Tolerance:            d.Tolerance,
		MaxCompletedBars:     d.MaxCompletedBars,
		MaxBarsFromLastPivot: d.MaxBarsFromLastPivot,
	}, nil
}

// LogConfig converts the logging section into a logger configuration.
func (c *Config) LogConfig() logging.LogConfig {
	l := c.Logging
	return logging.LogConfig{
		Level:      l.Level,
		Console:    l.Console,
		File:       l.File,
		FilePath:   l.FilePath,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
	}
}
