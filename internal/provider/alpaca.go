package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"candlebt/internal/domain"
	"candlebt/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Alpaca)(nil)

const (
	defaultFeed        = "sip"
	defaultRatePerMin  = 200
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// barsClient is the subset of *marketdata.Client the provider calls.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Alpaca fetches US equity bars from the Alpaca market-data API.
type Alpaca struct {
	client      barsClient
	feed        string
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// AlpacaOptions configures NewAlpaca. Zero values select the defaults.
type AlpacaOptions struct {
	APIKey     string
	APISecret  string
	DataURL    string
	Feed       string // "sip" or "iex"
	RatePerMin int
}

// NewAlpaca creates an Alpaca provider with the given credentials.
func NewAlpaca(o AlpacaOptions) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    o.APIKey,
		APISecret: o.APISecret,
	}
	if o.DataURL != "" {
		opts.BaseURL = o.DataURL
	}
	return newAlpaca(marketdata.NewClient(opts), o.Feed, o.RatePerMin)
}

func newAlpaca(client barsClient, feed string, ratePerMin int) *Alpaca {
	if feed == "" {
		feed = defaultFeed
	}
	if ratePerMin <= 0 {
		ratePerMin = defaultRatePerMin
	}
	return &Alpaca{
		client:      client,
		feed:        feed,
		limiter:     util.NewRateLimiter(ratePerMin),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		log:         slog.Default().With("provider", "alpaca"),
	}
}

// Name returns the provider identifier.
func (a *Alpaca) Name() string { return "alpaca" }

// Bars fetches the bars for req, retrying transient failures with backoff.
func (a *Alpaca) Bars(ctx context.Context, req Request) ([]domain.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("alpaca: %w", err)
	}
	if req.Market != "" && req.Market != domain.MarketUS {
		return nil, fmt.Errorf("alpaca: %w: %s", ErrUnsupportedMarket, req.Market)
	}
	tf, err := timeFrame(req.Interval)
	if err != nil {
		return nil, fmt.Errorf("alpaca: %w", err)
	}
	symbol := strings.ToUpper(req.Symbol)

	var raw []marketdata.Bar
	err = util.Retry(ctx, a.maxAttempts, a.retryDelay, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		var ferr error
		raw, ferr = a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     req.Start,
			End:       req.End,
			Feed:      marketdata.Feed(a.feed),
		})
		if ferr == nil {
			return nil
		}
		if !retryable(ferr) {
			a.log.Warn("GetBars rejected", "symbol", symbol, "err", ferr)
			return util.Permanent(ferr)
		}
		a.log.Warn("GetBars failed, retrying", "symbol", symbol, "err", ferr)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca: GetBars %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("alpaca: %s %s: %w", symbol, req.Interval, ErrNoData)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ab.Timestamp.UTC(),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	a.log.Debug("fetched bars", "symbol", symbol, "interval", req.Interval, "bars", len(bars))
	return bars, nil
}

// retryable reports whether a GetBars failure may succeed on a later
// attempt. Rate limiting, server errors and transport failures may; any other
// API rejection (unknown symbol, feed not permitted, bad request) will not.
func retryable(err error) bool {
	var apiErr *alpacaapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// timeFrame maps an interval onto an Alpaca bar time frame.
func timeFrame(iv domain.Interval) (marketdata.TimeFrame, error) {
	switch iv {
	case domain.Interval1Min:
		return marketdata.OneMin, nil
	case domain.Interval5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case domain.Interval15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case domain.Interval30Min:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case domain.Interval1Hour:
		return marketdata.OneHour, nil
	case domain.Interval1Day:
		return marketdata.OneDay, nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("no time frame for interval %q", iv)
}
