// Package store provides candle persistence for the pattern detector.
package store

import (
	"context"
	"time"

	"chart-patterns/internal/models"
)

// CandleStore defines the interface for candle persistence.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetLatestCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)
	ListSeries(ctx context.Context) ([]SeriesInfo, error)
	Close() error
}

// SeriesInfo summarises the stored candles of one symbol and timeframe.
type SeriesInfo struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Count     int       `json:"count"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
}
