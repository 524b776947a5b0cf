package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"candlebt/internal/domain"
	"candlebt/internal/engine"
	"candlebt/internal/provider"
	"candlebt/internal/strategy"
	"candlebt/pkg/candlebt"
)

// Request defaults applied when a RunRequest leaves a field empty.
const (
	DefaultMarket   = domain.MarketUS
	DefaultInterval = domain.Interval15Min
	DefaultDays     = 59
)

// BacktestServiceServer is the server API of the BacktestService. Every
// method takes and returns a protobuf Struct holding one of the candlebt
// wire messages.
type BacktestServiceServer interface {
	ListStrategies(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RunBacktest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RunBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ClearCache(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// CacheClearer empties a fetch cache.
type CacheClearer interface {
	ClearCache(ctx context.Context) (int64, error)
}

// Compile-time interface check.
var _ BacktestServiceServer = (*BacktestService)(nil)

// BacktestService runs backtests on request, fetching bars from a provider.
type BacktestService struct {
	registry    *strategy.Registry
	provider    provider.Provider
	cache       CacheClearer
	opts        engine.Options
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

// NewBacktestService creates a BacktestService. opts are the account
// settings used when a request does not override them.
func NewBacktestService(reg *strategy.Registry, prov provider.Provider, opts engine.Options, logger *slog.Logger) *BacktestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BacktestService{
		registry:    reg,
		provider:    prov,
		opts:        opts,
		concurrency: 4,
		now:         time.Now,
		log:         logger.With("component", "backtest-service"),
	}
}

// SetCache enables the ClearCache method.
func (s *BacktestService) SetCache(c CacheClearer) { s.cache = c }

// SetConcurrency bounds the parallel fetches and runs of a batch.
func (s *BacktestService) SetConcurrency(n int) { s.concurrency = n }

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// ListStrategies returns every registered strategy with its description.
func (s *BacktestService) ListStrategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var out candlebt.StrategyList
	for _, name := range s.registry.List() {
		strat, _ := s.registry.Get(name)
		info := strategy.Describe(strat)
		out.Strategies = append(out.Strategies, candlebt.StrategyInfo{Name: info.Name, Description: info.Description})
	}
	return encode(out)
}

// RunBacktest runs one backtest. A symbol without data yields a result with
// zero metrics.
func (s *BacktestService) RunBacktest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req candlebt.RunRequest
	if err := candlebt.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}

	eng, preq, err := s.prepare(req, req.Symbol)
	if err != nil {
		return nil, mapError(err, "run backtest")
	}

	bars, err := s.provider.Bars(ctx, preq)
	if err != nil && !errors.Is(err, provider.ErrNoData) {
		return nil, mapError(err, "fetch "+preq.Symbol)
	}

	res, err := eng.Run(ctx, strings.ToUpper(preq.Symbol), bars)
	if err != nil {
		return nil, mapError(err, "run backtest")
	}
	return encode(toRunResult(res, req.IncludeSeries))
}

// RunBatch runs the same backtest for several symbols concurrently. Symbols
// without data are left out of the response.
func (s *BacktestService) RunBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req candlebt.BatchRequest
	if err := candlebt.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if len(req.Symbols) == 0 {
		return nil, status.Error(codes.InvalidArgument, "symbols are required")
	}

	var (
		eng  *engine.Engine
		reqs []provider.Request
	)
	for _, sym := range req.Symbols {
		e, preq, err := s.prepare(req.RunRequest, sym)
		if err != nil {
			return nil, mapError(err, "run batch")
		}
		eng = e
		reqs = append(reqs, preq)
	}

	series, err := provider.FetchMany(ctx, s.provider, reqs, s.concurrency)
	if err != nil {
		return nil, mapError(err, "fetch batch")
	}

	var jobs []engine.Job
	for _, r := range reqs {
		sym := strings.ToUpper(r.Symbol)
		if bars, ok := series[sym]; ok {
			jobs = append(jobs, engine.Job{Symbol: sym, Bars: bars})
		}
	}
	results, err := eng.RunMany(ctx, jobs, s.concurrency)
	if err != nil {
		return nil, mapError(err, "run batch")
	}

	out := candlebt.BatchResult{Results: make([]candlebt.RunResult, 0, len(results))}
	for _, res := range results {
		out.Results = append(out.Results, toRunResult(res, req.IncludeSeries))
	}
	s.log.Info("batch finished", "symbols", len(req.Symbols), "runs", len(results))
	return encode(out)
}

// ClearCache empties the fetch cache.
func (s *BacktestService) ClearCache(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.cache == nil {
		return nil, status.Error(codes.FailedPrecondition, "no fetch cache configured")
	}
	n, err := s.cache.ClearCache(ctx)
	if err != nil {
		return nil, mapError(err, "clear cache")
	}
	return encode(candlebt.ClearCacheResult{Removed: n})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// errInvalidRequest marks request validation failures.
var errInvalidRequest = errors.New("invalid request")

// prepare resolves the strategy, account settings and fetch window of req
// for symbol.
func (s *BacktestService) prepare(req candlebt.RunRequest, symbol string) (*engine.Engine, provider.Request, error) {
	strat, err := s.registry.Lookup(req.Strategy)
	if err != nil {
		return nil, provider.Request{}, err
	}

	opts := s.opts
	if req.InitialCapital != 0 {
		opts.InitialCapital = req.InitialCapital
	}
	if req.MaxPositionRisk != 0 {
		opts.MaxPositionRisk = req.MaxPositionRisk
	}
	if !(opts.InitialCapital > 0) || !(opts.MaxPositionRisk > 0) || opts.MaxPositionRisk > 1 {
		return nil, provider.Request{}, fmt.Errorf("%w: capital must be > 0 and risk in (0, 1]", errInvalidRequest)
	}

	market := domain.Market(strings.ToLower(req.Market))
	switch market {
	case "":
		market = DefaultMarket
	case domain.MarketUS, domain.MarketNSE, domain.MarketBSE:
	default:
		return nil, provider.Request{}, fmt.Errorf("%w: unknown market %q", errInvalidRequest, req.Market)
	}
	if bare, suffixMarket, ok := provider.SplitTicker(symbol); ok {
		symbol, market = bare, suffixMarket
	}
	interval := domain.Interval(req.Interval)
	if interval == "" {
		interval = DefaultInterval
	}

	now := s.now().UTC()
	days := req.Days
	if days <= 0 {
		days = DefaultDays
	}
	preq := provider.LastDays(symbol, market, interval, days, now)
	if req.Start != nil {
		preq.Start = *req.Start
	}
	if req.End != nil {
		preq.End = *req.End
	}
	if err := preq.Validate(); err != nil {
		return nil, provider.Request{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	return engine.NewEngine(strat, opts, s.log), preq, nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := candlebt.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// mapError converts service errors to gRPC status codes.
func mapError(err error, msg string) error {
	switch {
	case errors.Is(err, strategy.ErrUnknownStrategy):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, provider.ErrUnsupportedMarket),
		errors.Is(err, engine.ErrUnorderedBars):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: canceled", msg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: deadline exceeded", msg)
	}
	return status.Errorf(codes.Internal, "%s: %v", msg, err)
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

// Register adds svc to gs under candlebt.ServiceName.
func Register(gs grpc.ServiceRegistrar, svc BacktestServiceServer) {
	gs.RegisterService(&serviceDesc, svc)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: candlebt.ServiceName,
	HandlerType: (*BacktestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: candlebt.MethodListStrategies, Handler: unaryHandler(candlebt.MethodListStrategies, BacktestServiceServer.ListStrategies)},
		{MethodName: candlebt.MethodRunBacktest, Handler: unaryHandler(candlebt.MethodRunBacktest, BacktestServiceServer.RunBacktest)},
		{MethodName: candlebt.MethodRunBatch, Handler: unaryHandler(candlebt.MethodRunBatch, BacktestServiceServer.RunBatch)},
		{MethodName: candlebt.MethodClearCache, Handler: unaryHandler(candlebt.MethodClearCache, BacktestServiceServer.ClearCache)},
	},
	Streams: []grpc.StreamDesc{},
}

type unaryMethod func(BacktestServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(BacktestServiceServer)
		if interceptor == nil {
			return call(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: candlebt.FullMethod(name)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(svc, ctx, req.(*structpb.Struct))
		})
	}
}
