package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"candlebt/internal/config"
	"candlebt/internal/domain"
	"candlebt/internal/engine"
	"candlebt/internal/provider"
	"candlebt/internal/report"
	"candlebt/internal/strategy"
	"candlebt/internal/strategy/builtins"
	"candlebt/internal/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags.
type options struct {
	configPath string
	source     string
	strategy   string
	symbol     string
	market     string
	interval   string
	days       int
	capital    float64
	risk       float64
	list       bool
	clearCache bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", config.Path(), "config file (missing file means defaults)")
	fs.StringVar(&o.source, "source", provider.SourceStore, "bar source: store or alpaca")
	fs.StringVar(&o.strategy, "strategy", builtins.HammerReversalName, "strategy name (see -list)")
	fs.StringVar(&o.symbol, "symbol", "HDFCBANK", "symbol to backtest")
	fs.StringVar(&o.market, "market", string(domain.MarketNSE), "market: us, nse or bse")
	fs.StringVar(&o.interval, "interval", string(domain.Interval1Day), "bar interval: 1m, 5m, 15m, 30m, 1h or 1d")
	fs.IntVar(&o.days, "days", 365, "days of history ending now")
	fs.Float64Var(&o.capital, "capital", 0, "initial capital (0 uses the config value)")
	fs.Float64Var(&o.risk, "risk", 0, "max fraction of capital per position (0 uses the config value)")
	fs.BoolVar(&o.list, "list", false, "list strategies and exit")
	fs.BoolVar(&o.clearCache, "clear-cache", false, "empty the fetch cache of the source and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: backtest [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath, true)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := util.NewLoggerTo(stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	reg := strategy.NewRegistry()
	if err := builtins.RegisterAll(reg, cfg.StrategyParams()); err != nil {
		return err
	}
	if o.list {
		for _, name := range reg.List() {
			s, _ := reg.Get(name)
			info := strategy.Describe(s)
			fmt.Fprintf(stdout, "%-24s %s\n", info.Name, info.Description)
		}
		return nil
	}

	prov, closeProv, err := provider.Open(cfg, o.source)
	if err != nil {
		return err
	}
	defer closeProv()

	if o.clearCache {
		c, ok := prov.(*provider.Cached)
		if !ok {
			return fmt.Errorf("source %q has no fetch cache", o.source)
		}
		n, err := c.ClearCache(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Cleared %d cached fetches\n", n)
		return nil
	}

	strat, err := reg.Lookup(o.strategy)
	if err != nil {
		return err
	}
	opts := cfg.EngineOptions()
	if o.capital != 0 {
		opts.InitialCapital = o.capital
	}
	if o.risk != 0 {
		opts.MaxPositionRisk = o.risk
	}
	if !(opts.InitialCapital > 0) || !(opts.MaxPositionRisk > 0) || opts.MaxPositionRisk > 1 {
		return fmt.Errorf("capital must be > 0 and risk in (0, 1]")
	}
	if o.days <= 0 {
		return fmt.Errorf("days must be > 0")
	}

	market := domain.Market(strings.ToLower(o.market))
	if bare, suffixMarket, ok := provider.SplitTicker(o.symbol); ok {
		o.symbol, market = bare, suffixMarket
	}
	req := provider.LastDays(o.symbol, market, domain.Interval(o.interval), o.days, time.Now().UTC())
	if err := req.Validate(); err != nil {
		return err
	}

	currency := report.Currency(market)
	rule := strings.Repeat("=", 80)
	info := strategy.Describe(strat)
	fmt.Fprintln(stdout, rule)
	fmt.Fprintln(stdout, "CANDLESTICK PATTERN BACKTESTER")
	fmt.Fprintln(stdout, rule)
	fmt.Fprintf(stdout, "\nSymbol: %s\n", strings.ToUpper(o.symbol))
	fmt.Fprintf(stdout, "Market: %s\n", strings.ToUpper(string(market)))
	fmt.Fprintf(stdout, "Timeframe: %s\n", req.Interval)
	fmt.Fprintf(stdout, "Period: %s to %s\n", req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
	fmt.Fprintf(stdout, "Initial Capital: %s%s\n", currency, report.FormatMoney(opts.InitialCapital))
	fmt.Fprintf(stdout, "\nStrategy: %s\n", info.Description)
	fmt.Fprintln(stdout, rule)

	fmt.Fprintln(stdout, "\nFetching data...")
	bars, err := prov.Bars(ctx, req)
	if errors.Is(err, provider.ErrNoData) {
		return fmt.Errorf("no data found for %s", strings.ToUpper(o.symbol))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Loaded %d candles\n", len(bars))

	fmt.Fprintln(stdout, "\nRunning backtest...")
	res, err := engine.NewEngine(strat, opts, logger).Run(ctx, strings.ToUpper(o.symbol), bars)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	return report.WriteSummary(stdout, res, currency)
}
