package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Chart Pattern Detector Configuration

[detection]
# Detection mode: "completed" (strict, confirmed pivots) or "forming" (early warning)
mode = "completed"
# Pattern allow-list; empty enables every family
# double_top, double_bottom, head_and_shoulders, inverse_head_and_shoulders,
# triangle_ascending, triangle_descending, triangle_symmetrical,
# rising_wedge, falling_wedge, pennant, flag, triple_top, triple_bottom
families = []
# Drop candidates below this completion (0-1)
min_completion = 0.0
# Bars on each side required to confirm a swing pivot (0 = engine default)
pivot_depth = 0
# Near-equal price tolerance (0 = mode default: 0.02 completed, 0.035 forming)
tolerance = 0.0
# Bars after a breakout during which a pattern stays completed_active (0 = 10)
max_completed_bars = 0
# Bars since the last pivot after which freshness reaches zero (0 = 20)
max_bars_from_last_pivot = 0
# Minimum candles for a detection run (0 = 20)
min_bars = 0

[history]
# Candles used for historical enrichment
lookback = 500
# Largest-move examples kept per pattern type
max_examples = 3

[store]
# SQLite candle database (defaults to candles.db in the config directory)
# db_path = "/path/to/candles.db"

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = false
# file_path = "/path/to/patterns.log"
max_size = 100
max_backups = 7
max_age = 30
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
