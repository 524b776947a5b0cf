package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"candlebt/internal/config"
	"candlebt/internal/store"
)

// Bar sources selectable by the binaries.
const (
	SourceStore  = "store"  // local Parquet archive
	SourceAlpaca = "alpaca" // Alpaca market data behind the SQLite fetch cache
)

// ErrUnknownSource is returned by Open for an unrecognised source name.
var ErrUnknownSource = errors.New("unknown bar source")

// Open builds the provider named by source from cfg. The returned close
// function releases any resources the provider holds and is never nil.
func Open(cfg *config.Config, source string) (Provider, func() error, error) {
	noop := func() error { return nil }

	switch source {
	case SourceStore:
		return NewStoreProvider(store.NewParquetStore(cfg.Storage.DataDir)), noop, nil

	case SourceAlpaca:
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, noop, fmt.Errorf("creating cache dir: %w", err)
			}
		}
		cache, err := store.NewSQLiteCache(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("opening fetch cache: %w", err)
		}
		cache.SetTTL(cfg.Storage.CacheTTL)

		remote := NewAlpaca(AlpacaOptions{
			APIKey:     cfg.Alpaca.APIKey,
			APISecret:  cfg.Alpaca.APISecret,
			DataURL:    cfg.Alpaca.DataURL,
			Feed:       cfg.Alpaca.Feed,
			RatePerMin: cfg.Alpaca.RateLimitPerMin,
		})
		return NewCached(remote, cache), cache.Close, nil
	}
	return nil, noop, fmt.Errorf("%w: %q", ErrUnknownSource, source)
}
