package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"candlebt/internal/domain"
)

// Job is one symbol's bar series queued for a batch run.
type Job struct {
	Symbol string
	Bars   []domain.Bar
}

// RunMany backtests every job with at most limit runs in flight (limit <= 0
// means unbounded). Results come back in job order. The first failing run
// cancels the rest and its error is returned.
func (e *Engine) RunMany(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := e.Run(gctx, job.Symbol, job.Bars)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
