package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"candlebt/internal/config"
	"candlebt/internal/domain"
	"candlebt/internal/gather"
	"candlebt/internal/provider"
	"candlebt/internal/store"
	"candlebt/internal/util"
)

func main() {
	var (
		csvPath  = flag.String("csv", "", "CSV file to import (one symbol)")
		symbol   = flag.String("symbol", "", "symbol of the CSV file (default: file name, e.g. HDFCBANK.NS.csv)")
		symbols  = flag.String("symbols", "", "comma-separated symbols to download from Alpaca")
		market   = flag.String("market", string(domain.MarketUS), "market: us, nse or bse")
		interval = flag.String("interval", string(domain.Interval1Day), "bar interval")
		days     = flag.Int("days", 365, "days of history to download")
		zone     = flag.String("zone", "UTC", "time zone of CSV timestamps without an offset")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  bars-import -csv FILE [-symbol SYM] [-market nse] [-interval 1d] [-zone Asia/Kolkata]\n")
		fmt.Fprintf(os.Stderr, "  bars-import -symbols AAPL,MSFT [-interval 15m] [-days 59]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(config.Path(), true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	mkt := domain.Market(strings.ToLower(*market))
	iv := domain.Interval(*interval)
	if !iv.Valid() {
		log.Fatalf("unknown interval %q", *interval)
	}
	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	var g gather.Gatherer
	switch {
	case *csvPath != "":
		sym := *symbol
		if sym == "" {
			sym = gather.SymbolFromPath(*csvPath)
		}
		loc, err := util.LoadSessionZone(*zone)
		if err != nil {
			log.Fatalf("loading zone: %v", err)
		}
		g = gather.NewCSVImporter(*csvPath, sym, mkt, iv, loc, pstore)

	case *symbols != "":
		prov, closeProv, err := provider.Open(cfg, provider.SourceAlpaca)
		if err != nil {
			log.Fatalf("failed to open alpaca: %v", err)
		}
		defer closeProv()
		end := time.Now().UTC()
		reqs := gather.Requests(strings.Split(*symbols, ","), mkt, iv, end.AddDate(0, 0, -*days), end)
		g = gather.NewDownloader(prov, pstore, reqs, cfg.Backtest.Concurrency)

	default:
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("starting %s gatherer\n", g.Name())
	if err := g.Run(ctx); err != nil {
		log.Printf("gatherer error: %v", err)
		cancel()
		os.Exit(1)
	}
}
