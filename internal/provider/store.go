package provider

import (
	"context"
	"fmt"

	"candlebt/internal/domain"
	"candlebt/internal/store"
)

// Compile-time interface check.
var _ Provider = (*StoreProvider)(nil)

// StoreProvider serves bars from a local BarStore.
type StoreProvider struct {
	store store.BarStore
}

// NewStoreProvider creates a provider reading from s.
func NewStoreProvider(s store.BarStore) *StoreProvider {
	return &StoreProvider{store: s}
}

// Name returns the provider identifier.
func (p *StoreProvider) Name() string { return "store" }

// Bars reads the bars for req from the store.
func (p *StoreProvider) Bars(ctx context.Context, req Request) ([]domain.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	market := req.Market
	if market == "" {
		market = domain.MarketUS
	}
	bars, err := p.store.ReadBars(ctx, req.Symbol, market, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("store: %s/%s %s: %w", market, req.Symbol, req.Interval, ErrNoData)
	}
	return bars, nil
}
