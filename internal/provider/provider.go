// Package provider fetches OHLCV bar series from market-data sources: the
// Alpaca market-data API, the local Parquet archive, or either of them
// fronted by the SQLite fetch cache.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"candlebt/internal/domain"
)

var (
	// ErrNoData is returned when a source has no bars for a request.
	ErrNoData = errors.New("no data")

	// ErrUnsupportedMarket is returned by sources that do not cover the
	// requested market.
	ErrUnsupportedMarket = errors.New("unsupported market")
)

// Provider is a source of bar series.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Bars returns the bars for req, oldest first. It returns an error
	// wrapping ErrNoData when the source has nothing for the request.
	Bars(ctx context.Context, req Request) ([]domain.Bar, error)
}

// Request describes one bar series.
type Request struct {
	Symbol   string
	Market   domain.Market
	Interval domain.Interval
	Start    time.Time
	End      time.Time
}

// LastDays returns a request for the days calendar days up to now.
func LastDays(symbol string, market domain.Market, interval domain.Interval, days int, now time.Time) Request {
	return Request{
		Symbol:   symbol,
		Market:   market,
		Interval: interval,
		Start:    now.AddDate(0, 0, -days),
		End:      now,
	}
}

// Validate checks that req can be served.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return errors.New("empty symbol")
	case !r.Interval.Valid():
		return fmt.Errorf("unknown interval %q", r.Interval)
	case !r.End.After(r.Start):
		return fmt.Errorf("end %s is not after start %s",
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

var marketSuffixes = map[domain.Market]string{
	domain.MarketNSE: ".NS",
	domain.MarketBSE: ".BO",
}

// MarketSuffix returns the exchange suffix Yahoo-style tickers carry for
// market ("" for US symbols).
func MarketSuffix(market domain.Market) string {
	return marketSuffixes[market]
}

// SplitTicker splits a Yahoo-style ticker such as "HDFCBANK.NS" into the
// upper-case bare symbol and the market its suffix names. ok is false, and
// symbol is just upper-cased, when ticker carries no known suffix.
func SplitTicker(ticker string) (symbol string, market domain.Market, ok bool) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	for _, m := range []domain.Market{domain.MarketNSE, domain.MarketBSE} {
		if base, found := strings.CutSuffix(t, MarketSuffix(m)); found && base != "" {
			return base, m, true
		}
	}
	return t, "", false
}
