package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"candlebt/internal/domain"
	"candlebt/internal/store"
)

// Compile-time interface check.
var _ Provider = (*Cached)(nil)

// Cached fronts a Provider with a BarCache. Successful fetches are stored
// under the exact request window; failures are not cached.
type Cached struct {
	inner Provider
	cache store.BarCache
	log   *slog.Logger
}

// NewCached wraps inner with cache.
func NewCached(inner Provider, cache store.BarCache) *Cached {
	return &Cached{
		inner: inner,
		cache: cache,
		log:   slog.Default().With("provider", "cached", "inner", inner.Name()),
	}
}

// Name returns the wrapped provider's identifier.
func (c *Cached) Name() string { return c.inner.Name() }

// Bars returns the cached series for req, fetching and caching it on a miss.
// A cache that fails to read or write is logged and bypassed.
func (c *Cached) Bars(ctx context.Context, req Request) ([]domain.Bar, error) {
	key := store.CacheKey{
		Symbol:   strings.ToUpper(req.Symbol),
		Market:   req.Market,
		Interval: req.Interval,
		Start:    req.Start,
		End:      req.End,
	}

	bars, ok, err := c.cache.GetBars(ctx, key)
	switch {
	case err != nil:
		c.log.Warn("cache read failed", "symbol", key.Symbol, "err", err)
	case ok && len(bars) > 0:
		c.log.Debug("cache hit", "symbol", key.Symbol, "interval", key.Interval, "bars", len(bars))
		return bars, nil
	}

	c.log.Debug("cache miss", "symbol", key.Symbol, "interval", key.Interval)
	bars, err = c.inner.Bars(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.cache.PutBars(ctx, key, bars); err != nil {
		c.log.Warn("cache write failed", "symbol", key.Symbol, "err", err)
	}
	return bars, nil
}

// ClearCache drops every cached fetch and returns how many were removed.
func (c *Cached) ClearCache(ctx context.Context) (int64, error) {
	n, err := c.cache.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	c.log.Info("cache cleared", "entries", n)
	return n, nil
}
