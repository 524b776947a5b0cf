package candlebt

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "candlebt.v1.BacktestService"

// Method names of the BacktestService.
const (
	MethodListStrategies = "ListStrategies"
	MethodRunBacktest    = "RunBacktest"
	MethodRunBatch       = "RunBatch"
	MethodClearCache     = "ClearCache"
)

// FullMethod returns the gRPC path of method, e.g.
// "/candlebt.v1.BacktestService/RunBacktest".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// RunRequest asks for one backtest. Zero fields take the server defaults.
type RunRequest struct {
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol,omitempty"`
	Market   string `json:"market,omitempty"`   // us, nse or bse
	Interval string `json:"interval,omitempty"` // 1m, 5m, 15m, 30m, 1h or 1d

	// Either Days back from now, or an explicit Start/End window.
	Days  int        `json:"days,omitempty"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	InitialCapital  float64 `json:"initial_capital,omitempty"`
	MaxPositionRisk float64 `json:"max_position_risk,omitempty"`

	// IncludeSeries adds the bars and emitted signals to the result.
	IncludeSeries bool `json:"include_series,omitempty"`
}

// BatchRequest runs the same backtest for several symbols.
type BatchRequest struct {
	RunRequest
	Symbols []string `json:"symbols"`
}

// RunResult is the outcome of one backtest.
type RunResult struct {
	RunID    string `json:"run_id"`
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturn    float64 `json:"total_return"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	ProfitFactor   float64 `json:"profit_factor"`

	Trades  []Trade       `json:"trades"`
	Equity  []EquityPoint `json:"equity"`
	Bars    []Bar         `json:"bars,omitempty"`
	Signals []Signal      `json:"signals,omitempty"`
}

// BatchResult holds one RunResult per symbol that had data.
type BatchResult struct {
	Results []RunResult `json:"results"`
}

// Trade is a closed position.
type Trade struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	PatternTime time.Time `json:"pattern_time"`
	EntryTime   time.Time `json:"entry_time"`
	EntryPrice  float64   `json:"entry_price"`
	Quantity    int64     `json:"quantity"`
	StopLoss    float64   `json:"stop_loss"`
	Target      float64   `json:"target"`
	ExitTime    time.Time `json:"exit_time"`
	ExitPrice   float64   `json:"exit_price"`
	ExitReason  string    `json:"exit_reason"`
	PnL         float64   `json:"pnl"`
	PnLPercent  float64   `json:"pnl_percent"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
	Cash   float64   `json:"cash"`
}

// Bar is one OHLCV sample.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`

	// Patterns lists the candlestick patterns found on the bar at default
	// thresholds, for chart overlays.
	Patterns []string `json:"patterns,omitempty"`
}

// Signal is an entry instruction emitted on the bar at Index.
type Signal struct {
	Index       int       `json:"index"`
	Time        time.Time `json:"time"`
	Side        string    `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	Target      float64   `json:"target"`
	PatternTime time.Time `json:"pattern_time"`
}

// StrategyInfo describes a registered strategy.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StrategyList is the ListStrategies response.
type StrategyList struct {
	Strategies []StrategyInfo `json:"strategies"`
}

// ClearCacheResult is the ClearCache response.
type ClearCacheResult struct {
	Removed int64 `json:"removed"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode converts a message into the protobuf Struct carried on the wire.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// Decode fills v from a wire Struct. A nil Struct leaves v untouched.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	return nil
}
