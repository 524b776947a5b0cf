package portfolio

import (
	"math"

	"candlebt/internal/domain"
)

// DefaultCashBuffer is the share of cash that may be committed to a single
// entry; the rest covers commission.
const DefaultCashBuffer = 0.98

// Sizer computes risk-based position sizes.
type Sizer struct {
	cashBuffer float64
}

// NewSizer creates a Sizer that commits at most cashBuffer of the available
// cash to one position (e.g. 0.98 for 98%).
func NewSizer(cashBuffer float64) *Sizer {
	return &Sizer{cashBuffer: cashBuffer}
}

// RiskPerShare returns the loss per share if the stop is hit. It is
// non-positive when the stop sits on the wrong side of the entry.
func RiskPerShare(side domain.Side, entry, stop float64) float64 {
	if side == domain.SideShort {
		return stop - entry
	}
	return entry - stop
}

// Quantity returns the number of shares to buy so that hitting the stop costs
// at most riskFraction of cash, capped by what cash can pay for at the
// slipped entry price. It returns 0 when no position should be taken.
//
//   - riskFraction: fraction of cash put at risk (e.g. 0.10 for 10%).
//   - slippage: adverse fill adjustment applied to the entry price.
func (s *Sizer) Quantity(cash, entry, stop, riskFraction, slippage float64, side domain.Side) int64 {
	rps := RiskPerShare(side, entry, stop)
	if !(rps > 0) {
		return 0
	}

	byRisk := math.Floor(cash * riskFraction / rps)
	byCash := math.Floor(cash * s.cashBuffer / (entry * (1 + slippage)))

	qty := math.Min(byRisk, byCash)
	if !(qty > 0) || math.IsInf(qty, 0) {
		return 0
	}
	return int64(qty)
}
