package api

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"candlebt/internal/config"
	"candlebt/internal/domain"
	"candlebt/internal/engine"
	"candlebt/internal/pattern"
	"candlebt/internal/provider"
	"candlebt/internal/strategy"
	"candlebt/internal/strategy/builtins"
	"candlebt/pkg/candlebt"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) domain.Bar {
	return domain.Bar{Symbol: "TEST", Timestamp: day0.AddDate(0, 0, i), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

// hammerBars produces one LONG entry at 101 (stop 90, target 117.5) on bar 8
// that hits its target on bar 10.
func hammerBars() []domain.Bar {
	var bars []domain.Bar
	for i := 0; i < 7; i++ {
		h := 130 - float64(i)*3
		bars = append(bars, bar(i, h-1, h, h-10, h-9))
	}
	return append(bars,
		bar(7, 98, 100, 90, 100),
		bar(8, 101, 105, 100, 103),
		bar(9, 103, 104, 102, 103),
		bar(10, 110, 118, 109, 117),
	)
}

type fakeProvider struct {
	series map[string][]domain.Bar
	last   provider.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Bars(_ context.Context, r provider.Request) ([]domain.Bar, error) {
	f.last = r
	bars, ok := f.series[r.Symbol]
	if !ok {
		return nil, provider.ErrNoData
	}
	return bars, nil
}

type fakeCache struct{ n int64 }

func (f *fakeCache) ClearCache(context.Context) (int64, error) { return f.n, nil }

// startServer serves svc over an in-memory listener and returns a client.
func startServer(t *testing.T, svc BacktestServiceServer) *candlebt.Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(config.Default(), svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, lis) }()

	client, err := candlebt.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return client
}

func newService(t *testing.T, prov provider.Provider) *BacktestService {
	t.Helper()
	reg := strategy.NewRegistry()
	if err := builtins.RegisterAll(reg, builtins.DefaultParams()); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	opts := engine.Options{InitialCapital: 100000, MaxPositionRisk: 0.10}
	svc := NewBacktestService(reg, prov, opts, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestListStrategies(t *testing.T) {
	client := startServer(t, newService(t, &fakeProvider{}))

	infos, err := client.ListStrategies(context.Background())
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d strategies, want 3", len(infos))
	}
	if infos[0].Name != builtins.HammerReversalName || infos[0].Description == "" {
		t.Errorf("first strategy = %+v", infos[0])
	}
}

func TestRunBacktest(t *testing.T) {
	prov := &fakeProvider{series: map[string][]domain.Bar{"TEST": hammerBars()}}
	client := startServer(t, newService(t, prov))

	res, err := client.RunBacktest(context.Background(), candlebt.RunRequest{
		Strategy:      builtins.HammerReversalName,
		Symbol:        "TEST",
		IncludeSeries: true,
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}

	if res.TotalTrades != 1 || len(res.Trades) != 1 {
		t.Fatalf("TotalTrades = %d, want 1", res.TotalTrades)
	}
	tr := res.Trades[0]
	if tr.Side != "LONG" || tr.EntryPrice != 101 || tr.StopLoss != 90 || tr.Target != 117.5 || tr.Quantity != 909 {
		t.Errorf("trade = %+v", tr)
	}
	if tr.ExitReason != string(domain.ExitTarget) || !tr.PatternTime.Equal(day0.AddDate(0, 0, 7)) {
		t.Errorf("exit/pattern = %q/%v", tr.ExitReason, tr.PatternTime)
	}
	if res.InitialCapital != 100000 || res.RunID == "" {
		t.Errorf("InitialCapital/RunID = %v/%q", res.InitialCapital, res.RunID)
	}
	if len(res.Equity) != 11 || len(res.Bars) != 11 {
		t.Errorf("equity/bars = %d/%d, want 11", len(res.Equity), len(res.Bars))
	}
	if len(res.Signals) != 1 || res.Signals[0].Index != 8 || res.Signals[0].Side != "LONG" {
		t.Errorf("signals = %+v", res.Signals)
	}
	if got := res.Bars[7].Patterns; len(got) != 1 || got[0] != string(pattern.Hammer) {
		t.Errorf("bar 7 patterns = %v, want [Hammer]", got)
	}
	if got := res.Bars[8].Patterns; len(got) != 0 {
		t.Errorf("bar 8 patterns = %v, want none", got)
	}

	// Defaults fill the fetch request.
	if prov.last.Market != DefaultMarket || prov.last.Interval != DefaultInterval {
		t.Errorf("request market/interval = %s/%s", prov.last.Market, prov.last.Interval)
	}
	if got := prov.last.End.Sub(prov.last.Start); got != DefaultDays*24*time.Hour {
		t.Errorf("request window = %v, want %d days", got, DefaultDays)
	}
}

func TestRunBacktestSuffixedTicker(t *testing.T) {
	prov := &fakeProvider{series: map[string][]domain.Bar{"TEST": hammerBars()}}
	client := startServer(t, newService(t, prov))

	res, err := client.RunBacktest(context.Background(), candlebt.RunRequest{
		Strategy: builtins.HammerReversalName,
		Symbol:   "test.bo",
		Market:   "us",
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if prov.last.Symbol != "TEST" || prov.last.Market != domain.MarketBSE {
		t.Errorf("request symbol/market = %s/%s, want TEST/bse", prov.last.Symbol, prov.last.Market)
	}
	if res.Symbol != "TEST" || res.TotalTrades != 1 {
		t.Errorf("result symbol/trades = %s/%d", res.Symbol, res.TotalTrades)
	}
}

func TestRunBacktestNoData(t *testing.T) {
	client := startServer(t, newService(t, &fakeProvider{}))

	res, err := client.RunBacktest(context.Background(), candlebt.RunRequest{
		Strategy:       builtins.SessionBreakoutName,
		Symbol:         "NONE",
		InitialCapital: 250000,
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if res.TotalTrades != 0 || res.FinalCapital != 250000 || res.TotalReturn != 0 {
		t.Errorf("result = %+v, want zero metrics", res)
	}
}

func TestRunBacktestErrors(t *testing.T) {
	client := startServer(t, newService(t, &fakeProvider{}))
	start := day0.AddDate(0, 0, 10)
	end := day0

	tests := []struct {
		name string
		req  candlebt.RunRequest
		want codes.Code
	}{
		{"unknown strategy", candlebt.RunRequest{Strategy: "nope", Symbol: "X"}, codes.NotFound},
		{"missing symbol", candlebt.RunRequest{Strategy: builtins.HammerReversalName}, codes.InvalidArgument},
		{"bad market", candlebt.RunRequest{Strategy: builtins.HammerReversalName, Symbol: "X", Market: "lse"}, codes.InvalidArgument},
		{"bad interval", candlebt.RunRequest{Strategy: builtins.HammerReversalName, Symbol: "X", Interval: "7m"}, codes.InvalidArgument},
		{"inverted window", candlebt.RunRequest{Strategy: builtins.HammerReversalName, Symbol: "X", Start: &start, End: &end}, codes.InvalidArgument},
		{"bad risk", candlebt.RunRequest{Strategy: builtins.HammerReversalName, Symbol: "X", MaxPositionRisk: 2}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.RunBacktest(context.Background(), tt.req)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %v (%v), want %v", got, err, tt.want)
			}
		})
	}
}

func TestRunBatch(t *testing.T) {
	prov := &fakeProvider{series: map[string][]domain.Bar{
		"AAA": hammerBars(),
		"BBB": hammerBars()[:9],
	}}
	client := startServer(t, newService(t, prov))

	results, err := client.RunBatch(context.Background(),
		candlebt.RunRequest{Strategy: builtins.HammerReversalName},
		[]string{"AAA", "MISSING", "BBB"},
	)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 2 || results[0].Symbol != "AAA" || results[1].Symbol != "BBB" {
		t.Fatalf("results = %+v, want AAA and BBB", results)
	}
	if results[1].Trades[0].ExitReason != string(domain.ExitEndOfData) {
		t.Errorf("BBB exit = %q, want End of Data", results[1].Trades[0].ExitReason)
	}

	if _, err := client.RunBatch(context.Background(), candlebt.RunRequest{Strategy: builtins.HammerReversalName}, nil); status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty batch: err = %v, want InvalidArgument", err)
	}
}

func TestClearCache(t *testing.T) {
	svc := newService(t, &fakeProvider{})
	client := startServer(t, svc)

	if _, err := client.ClearCache(context.Background()); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("without cache: err = %v, want FailedPrecondition", err)
	}

	svc.SetCache(&fakeCache{n: 7})
	n, err := client.ClearCache(context.Background())
	if err != nil || n != 7 {
		t.Errorf("ClearCache = %d, %v, want 7", n, err)
	}
}
