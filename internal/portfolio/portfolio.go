// Package portfolio simulates a single-position trading account for
// backtesting. It tracks cash, the one open position, closed trades and the
// equity curve in memory without making external calls.
package portfolio

import (
	"log/slog"
	"time"

	"candlebt/internal/domain"
)

// Portfolio holds the account state of one backtest run. At most one position
// is open at any time. A Portfolio is not safe for concurrent use.
type Portfolio struct {
	initialCapital float64
	cash           float64
	commission     float64
	slippage       float64
	sizer          *Sizer

	current *domain.Position
	trades  []domain.Position
	equity  []domain.EquityPoint

	log *slog.Logger
}

// New creates a flat Portfolio funded with initialCapital. commission and
// slippage are fractional rates (0.0003 = 0.03%).
func New(initialCapital, commission, slippage float64) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		commission:     commission,
		slippage:       slippage,
		sizer:          NewSizer(DefaultCashBuffer),
		log:            slog.Default().With("component", "portfolio"),
	}
}

// SetLogger replaces the logger used for fill events.
func (p *Portfolio) SetLogger(l *slog.Logger) {
	if l != nil {
		p.log = l
	}
}

// OpenPosition sizes and opens a position. It returns false, leaving the
// portfolio untouched, when a position is already open, the stop is on the
// wrong side of the entry, sizing yields no shares, or the fill costs more
// than the available cash.
func (p *Portfolio) OpenPosition(
	ts time.Time,
	entryPrice, stopLoss, target float64,
	symbol string,
	riskFraction float64,
	side domain.Side,
) bool {
	if p.current != nil {
		return false
	}

	qty := p.sizer.Quantity(p.cash, entryPrice, stopLoss, riskFraction, p.slippage, side)
	if qty <= 0 {
		return false
	}

	fill := entryPrice * (1 + p.slippage)
	cost := float64(qty) * fill * (1 + p.commission)
	if cost > p.cash {
		return false
	}

	p.cash -= cost
	p.current = &domain.Position{
		Symbol:     symbol,
		Side:       side,
		EntryTime:  ts,
		EntryPrice: fill,
		Quantity:   qty,
		StopLoss:   stopLoss,
		Target:     target,
	}
	p.log.Debug("position opened",
		"symbol", symbol,
		"side", side,
		"qty", qty,
		"fill", fill,
		"stop", stopLoss,
		"target", target,
		"cash", p.cash,
	)
	return true
}

// SetPatternTime stamps the open position with the time of the pattern that
// triggered it. It is a no-op when flat.
func (p *Portfolio) SetPatternTime(t time.Time) {
	if p.current != nil {
		p.current.PatternTime = t
	}
}

// ClosePosition exits the open position at exitPrice (before slippage),
// credits the net proceeds and moves the position into the trade history. It
// returns false when no position is open.
func (p *Portfolio) ClosePosition(ts time.Time, exitPrice float64, reason domain.ExitReason) bool {
	pos := p.current
	if pos == nil {
		return false
	}

	fill := exitPrice * (1 - p.slippage)
	proceeds := float64(pos.Quantity) * fill * (1 - p.commission)

	pos.ExitTime = ts
	pos.ExitPrice = fill
	pos.ExitReason = reason
	if pos.Side == domain.SideShort {
		pos.PnL = (pos.EntryPrice - fill) * float64(pos.Quantity)
		pos.PnLPercent = (pos.EntryPrice - fill) / pos.EntryPrice * 100
	} else {
		pos.PnL = (fill - pos.EntryPrice) * float64(pos.Quantity)
		pos.PnLPercent = (fill - pos.EntryPrice) / pos.EntryPrice * 100
	}

	p.cash += proceeds
	p.trades = append(p.trades, *pos)
	p.current = nil

	p.log.Debug("position closed",
		"symbol", pos.Symbol,
		"reason", reason,
		"fill", fill,
		"pnl", pos.PnL,
		"cash", p.cash,
	)
	return true
}

// UpdateEquity appends an equity sample valued at currentPrice.
func (p *Portfolio) UpdateEquity(ts time.Time, currentPrice float64) {
	p.equity = append(p.equity, domain.EquityPoint{
		Timestamp: ts,
		Equity:    p.TotalEquity(currentPrice),
		Cash:      p.cash,
	})
}

// TotalEquity returns cash plus the open position marked at currentPrice.
func (p *Portfolio) TotalEquity(currentPrice float64) float64 {
	equity := p.cash
	if p.current != nil {
		equity += float64(p.current.Quantity) * currentPrice
	}
	return equity
}

// Open reports whether a position is open.
func (p *Portfolio) Open() bool { return p.current != nil }

// Current returns a copy of the open position, or nil when flat.
func (p *Portfolio) Current() *domain.Position {
	if p.current == nil {
		return nil
	}
	pos := *p.current
	return &pos
}

// Cash returns the available cash.
func (p *Portfolio) Cash() float64 { return p.cash }

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// Trades returns the closed positions in the order they were closed.
func (p *Portfolio) Trades() []domain.Position {
	return append([]domain.Position(nil), p.trades...)
}

// EquityCurve returns the recorded equity samples.
func (p *Portfolio) EquityCurve() []domain.EquityPoint {
	return append([]domain.EquityPoint(nil), p.equity...)
}
