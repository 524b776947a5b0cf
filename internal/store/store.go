// Package store defines storage for price bars: a Parquet bar archive used as
// an offline data source and a SQLite cache for bars fetched from remote
// providers.
package store

import (
	"context"
	"time"

	"candlebt/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for the given market and interval.
	WriteBars(ctx context.Context, market domain.Market, interval domain.Interval, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end], oldest first.
	ReadBars(ctx context.Context, symbol string, market domain.Market, interval domain.Interval, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols stored for market and interval.
	ListSymbols(ctx context.Context, market domain.Market, interval domain.Interval) ([]string, error)
}

// CacheKey identifies one remote fetch.
type CacheKey struct {
	Symbol   string
	Market   domain.Market
	Interval domain.Interval
	Start    time.Time
	End      time.Time
}

// BarCache memoises remote bar fetches.
type BarCache interface {
	// GetBars returns the cached bars for key. ok is false on a miss.
	GetBars(ctx context.Context, key CacheKey) (bars []domain.Bar, ok bool, err error)

	// PutBars stores bars under key, replacing any previous entry.
	PutBars(ctx context.Context, key CacheKey, bars []domain.Bar) error

	// Clear drops every entry and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
}
