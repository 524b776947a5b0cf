package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"candlebt/internal/domain"
	"candlebt/internal/provider"
	"candlebt/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*Downloader)(nil)

// Downloader fetches bars for a list of symbols from a provider and archives
// them in a BarStore, so later backtests can run offline.
type Downloader struct {
	provider    provider.Provider
	store       store.BarStore
	requests    []provider.Request
	concurrency int
	log         *slog.Logger
}

// NewDownloader creates a Downloader for the given fetch requests. All
// requests must share one market and interval.
func NewDownloader(p provider.Provider, s store.BarStore, reqs []provider.Request, concurrency int) *Downloader {
	return &Downloader{
		provider:    p,
		store:       s,
		requests:    reqs,
		concurrency: concurrency,
		log:         slog.Default().With("gatherer", "download"),
	}
}

// Name returns the gatherer identifier.
func (g *Downloader) Name() string { return "download" }

// Run fetches every symbol concurrently and writes the series that returned
// data. Symbols without data are skipped.
func (g *Downloader) Run(ctx context.Context) error {
	if len(g.requests) == 0 {
		return nil
	}
	market, interval := g.requests[0].Market, g.requests[0].Interval
	for _, r := range g.requests[1:] {
		if r.Market != market || r.Interval != interval {
			return fmt.Errorf("download: mixed market/interval %s/%s and %s/%s", market, interval, r.Market, r.Interval)
		}
	}

	series, err := provider.FetchMany(ctx, g.provider, g.requests, g.concurrency)
	if err != nil {
		return err
	}

	written := 0
	for _, r := range g.requests {
		bars, ok := series[strings.ToUpper(r.Symbol)]
		if !ok {
			continue
		}
		if err := g.store.WriteBars(ctx, market, interval, bars); err != nil {
			return fmt.Errorf("writing %s bars: %w", r.Symbol, err)
		}
		written++
	}

	g.log.Info("download complete",
		"provider", g.provider.Name(),
		"market", market,
		"interval", interval,
		"requested", len(g.requests),
		"written", written,
	)
	return nil
}

// Requests builds one request per symbol over the same window.
func Requests(symbols []string, market domain.Market, interval domain.Interval, start, end time.Time) []provider.Request {
	reqs := make([]provider.Request, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		reqs = append(reqs, provider.Request{Symbol: sym, Market: market, Interval: interval, Start: start, End: end})
	}
	return reqs
}
