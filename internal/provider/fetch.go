package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"candlebt/internal/domain"
)

// FetchMany fetches every request with at most limit fetches in flight
// (limit <= 0 means unbounded) and returns the series keyed by upper-case
// symbol. Symbols that fail or have no data are logged and left out; only
// cancellation of ctx is returned as an error.
func FetchMany(ctx context.Context, p Provider, reqs []Request, limit int) (map[string][]domain.Bar, error) {
	log := slog.Default().With("provider", p.Name())

	var (
		mu  sync.Mutex
		out = make(map[string][]domain.Bar, len(reqs))
	)

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, req := range reqs {
		g.Go(func() error {
			bars, err := p.Bars(gctx, req)
			switch {
			case err == nil:
			case gctx.Err() != nil:
				return gctx.Err()
			case errors.Is(err, ErrNoData):
				log.Info("no data", "symbol", req.Symbol, "interval", req.Interval)
				return nil
			default:
				log.Warn("fetch failed", "symbol", req.Symbol, "err", err)
				return nil
			}

			mu.Lock()
			out[strings.ToUpper(req.Symbol)] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
