package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"candlebt/internal/api"
	"candlebt/internal/config"
	"candlebt/internal/provider"
	"candlebt/internal/strategy"
	"candlebt/internal/strategy/builtins"
	"candlebt/internal/util"
)

func main() {
	source := flag.String("source", provider.SourceAlpaca, "bar source: store or alpaca")
	flag.Parse()

	cfg, err := config.Load(config.Path(), true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	reg := strategy.NewRegistry()
	if err := builtins.RegisterAll(reg, cfg.StrategyParams()); err != nil {
		log.Fatalf("failed to register strategies: %v", err)
	}

	prov, closeProv, err := provider.Open(cfg, *source)
	if err != nil {
		log.Fatalf("failed to open bar source: %v", err)
	}
	defer closeProv()

	svc := api.NewBacktestService(reg, prov, cfg.EngineOptions(), logger)
	svc.SetConcurrency(cfg.Backtest.Concurrency)
	if c, ok := prov.(api.CacheClearer); ok {
		svc.SetCache(c)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("backtest-server starting",
		"source", *source,
		"host", cfg.Server.Host,
		"grpc_port", cfg.Server.GRPCPort,
		"strategies", len(reg.List()),
	)
	if err := api.NewServer(cfg, svc, logger).ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		closeProv()
		os.Exit(1)
	}
}
