// Package domain defines the core types shared across candlebt: price bars,
// per-bar signal annotations, positions and equity samples.
package domain

import "time"

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Market identifies the exchange or venue a symbol trades on.
type Market string

const (
	MarketUS  Market = "us"
	MarketNSE Market = "nse"
	MarketBSE Market = "bse"
)

// Interval is the duration covered by one bar, in the "15m" / "1h" / "1d"
// notation used by data providers.
type Interval string

const (
	Interval1Min  Interval = "1m"
	Interval5Min  Interval = "5m"
	Interval15Min Interval = "15m"
	Interval30Min Interval = "30m"
	Interval1Hour Interval = "1h"
	Interval1Day  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1Min:  time.Minute,
	Interval5Min:  5 * time.Minute,
	Interval15Min: 15 * time.Minute,
	Interval30Min: 30 * time.Minute,
	Interval1Hour: time.Hour,
	Interval1Day:  24 * time.Hour,
}

// Duration returns the bar length, or 0 for an unknown interval.
func (i Interval) Duration() time.Duration { return intervalDurations[i] }

// Valid reports whether i is one of the supported intervals.
func (i Interval) Valid() bool { return i.Duration() > 0 }

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal is the per-bar trade instruction produced by a strategy.
type Signal int

const (
	SignalNone  Signal = 0
	SignalLong  Signal = 1
	SignalShort Signal = -1
)

// String returns "NONE", "LONG" or "SHORT".
func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "LONG"
	case SignalShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Side maps a non-NONE signal to the side of the position it opens. The
// second return value is false for SignalNone.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalLong:
		return SideLong, true
	case SignalShort:
		return SideShort, true
	default:
		return "", false
	}
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss  ExitReason = "Stop Loss"
	ExitTarget    ExitReason = "Target"
	ExitEndOfData ExitReason = "End of Data"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV sample. Bars inside a series are ordered by Timestamp and
// never modified after the series is built.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ---------------------------------------------------------------------------
// Strategy output
// ---------------------------------------------------------------------------

// Annotation is the strategy output for a single bar. A strategy returns one
// Annotation per input bar, at the same index.
type Annotation struct {
	Signal     Signal
	EntryPrice float64
	StopLoss   float64
	Target     float64

	// PatternTime is the timestamp of the bar (or session) that produced the
	// signal. Zero when no signal was emitted.
	PatternTime time.Time

	// Diagnostics.
	IsHammer       bool
	IsShootingStar bool
	HasTrend       bool
	RangeHigh      float64 // session range, 0 outside a post-session window
	RangeLow       float64
}

// HasSignal reports whether the annotation carries a LONG or SHORT signal.
func (a Annotation) HasSignal() bool {
	return a.Signal != SignalNone
}

// ---------------------------------------------------------------------------
// Portfolio records
// ---------------------------------------------------------------------------

// Position is an open or closed trade. The exit fields are populated exactly
// once, when the position is closed.
type Position struct {
	Symbol      string
	Side        Side
	PatternTime time.Time
	EntryTime   time.Time
	EntryPrice  float64 // after slippage
	Quantity    int64
	StopLoss    float64
	Target      float64

	ExitTime   time.Time
	ExitPrice  float64 // after slippage
	ExitReason ExitReason
	PnL        float64
	PnLPercent float64
}

// Closed reports whether the position has been closed.
func (p *Position) Closed() bool {
	return p.ExitReason != ""
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	Cash      float64
}
