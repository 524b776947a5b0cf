// Package engine drives backtests: it generates signals for a bar series,
// walks the series bar by bar through a portfolio simulator, and rolls the
// resulting trades and equity curve up into performance metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"candlebt/internal/domain"
	"candlebt/internal/portfolio"
	"candlebt/internal/strategy"
)

var (
	// ErrUnorderedBars is returned when bar timestamps are not strictly
	// increasing.
	ErrUnorderedBars = errors.New("bars not in strictly increasing time order")

	// ErrAnnotationCount is returned when a strategy does not produce exactly
	// one annotation per bar.
	ErrAnnotationCount = errors.New("strategy returned wrong number of annotations")
)

// Options holds the per-run account and risk settings.
type Options struct {
	InitialCapital  float64
	Commission      float64 // fraction of notional per fill
	Slippage        float64 // fraction of price, applied against the trader
	MaxPositionRisk float64 // fraction of cash risked per trade
}

// DefaultOptions returns the stock account settings.
func DefaultOptions() Options {
	return Options{
		InitialCapital:  500000,
		Commission:      0.0003,
		Slippage:        0.0001,
		MaxPositionRisk: 0.10,
	}
}

// Result is the outcome of one backtest run.
type Result struct {
	RunID    string
	Symbol   string
	Strategy string

	InitialCapital float64
	FinalCapital   float64
	Metrics

	Trades      []domain.Position
	EquityCurve []domain.EquityPoint
	Bars        []domain.Bar
	Annotations []domain.Annotation
}

// Engine runs one strategy against bar series. An Engine holds no per-run
// state, so one Engine may serve several runs concurrently.
type Engine struct {
	strategy strategy.Strategy
	opts     Options
	log      *slog.Logger
}

// NewEngine creates an Engine for strat. A nil logger selects slog.Default().
func NewEngine(strat strategy.Strategy, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		strategy: strat,
		opts:     opts,
		log:      logger.With("strategy", strat.Name()),
	}
}

// Strategy returns the strategy the engine runs.
func (e *Engine) Strategy() strategy.Strategy { return e.strategy }

// Options returns the account settings of every run.
func (e *Engine) Options() Options { return e.opts }

// Run backtests symbol over bars. An empty series yields a Result with zero
// metrics and no error.
func (e *Engine) Run(ctx context.Context, symbol string, bars []domain.Bar) (*Result, error) {
	res := &Result{
		RunID:          uuid.NewString(),
		Symbol:         symbol,
		Strategy:       e.strategy.Name(),
		InitialCapital: e.opts.InitialCapital,
		FinalCapital:   e.opts.InitialCapital,
		Bars:           bars,
	}
	log := e.log.With("symbol", symbol, "run", res.RunID)

	if len(bars) == 0 {
		log.Warn("no bars to backtest")
		return res, nil
	}
	if err := checkOrder(bars); err != nil {
		return nil, fmt.Errorf("backtesting %s: %w", symbol, err)
	}

	anns := e.strategy.GenerateSignals(bars)
	if len(anns) != len(bars) {
		return nil, fmt.Errorf("backtesting %s: %w: %d for %d bars", symbol, ErrAnnotationCount, len(anns), len(bars))
	}
	res.Annotations = anns

	pf := portfolio.New(e.opts.InitialCapital, e.opts.Commission, e.opts.Slippage)
	pf.SetLogger(log)

	log.Debug("backtest started", "bars", len(bars))
	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if pos := pf.Current(); pos != nil && !pos.EntryTime.Equal(bar.Timestamp) {
			if price, reason, hit := exitFor(pos, bar); hit {
				pf.ClosePosition(bar.Timestamp, price, reason)
			}
		}

		if ann := anns[i]; !pf.Open() {
			if side, ok := ann.Signal.Side(); ok {
				opened := pf.OpenPosition(bar.Timestamp, ann.EntryPrice, ann.StopLoss, ann.Target,
					symbol, e.opts.MaxPositionRisk, side)
				if opened && !ann.PatternTime.IsZero() {
					pf.SetPatternTime(ann.PatternTime)
				}
			}
		}

		pf.UpdateEquity(bar.Timestamp, bar.Close)
	}

	if pf.Open() {
		last := bars[len(bars)-1]
		pf.ClosePosition(last.Timestamp, last.Close, domain.ExitEndOfData)
	}

	res.FinalCapital = pf.Cash()
	res.Trades = pf.Trades()
	res.EquityCurve = pf.EquityCurve()
	res.Metrics = ComputeMetrics(pf.InitialCapital(), res.FinalCapital, res.Trades, res.EquityCurve)

	log.Info("backtest finished",
		"bars", len(bars),
		"trades", res.TotalTrades,
		"return_pct", res.TotalReturn,
		"max_drawdown_pct", res.MaxDrawdown,
	)
	return res, nil
}

// exitFor checks pos against the range of bar. The stop is tested before the
// target, so a bar that spans both exits at the stop.
func exitFor(pos *domain.Position, bar domain.Bar) (float64, domain.ExitReason, bool) {
	switch pos.Side {
	case domain.SideLong:
		if bar.Low <= pos.StopLoss {
			return pos.StopLoss, domain.ExitStopLoss, true
		}
		if bar.High >= pos.Target {
			return pos.Target, domain.ExitTarget, true
		}
	case domain.SideShort:
		if bar.High >= pos.StopLoss {
			return pos.StopLoss, domain.ExitStopLoss, true
		}
		if bar.Low <= pos.Target {
			return pos.Target, domain.ExitTarget, true
		}
	}
	return 0, "", false
}

func checkOrder(bars []domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d at %s follows %s", ErrUnorderedBars, i,
				bars[i].Timestamp.Format("2006-01-02T15:04:05Z07:00"),
				bars[i-1].Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
	}
	return nil
}
