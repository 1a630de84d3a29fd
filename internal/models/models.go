// Package models provides domain models for the pattern detection engine.
package models

import (
	"math"
	"time"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume,omitempty"`
}

// IsFinite reports whether all price fields of the candle are finite numbers.
func (c Candle) IsFinite() bool {
	return isFinite(c.Open) && isFinite(c.High) && isFinite(c.Low) && isFinite(c.Close)
}

// Range returns High - Low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Series describes a candle window for a symbol and timeframe.
type Series struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// LastIndex returns the index of the most recent candle, or -1 for an empty series.
func (s Series) LastIndex() int {
	return len(s.Candles) - 1
}
