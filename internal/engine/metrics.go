package engine

import (
	"math"

	"candlebt/internal/domain"
)

// Metrics summarises the performance of a backtest run. Percentages are in
// percent units (12.5 means 12.5%).
type Metrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalPnL      float64
	TotalReturn   float64 // final cash vs initial capital
	MaxDrawdown   float64 // most negative decline from the running peak, <= 0
	AvgWin        float64
	AvgLoss       float64 // <= 0
	ProfitFactor  float64 // |AvgWin / AvgLoss|, 0 without losses
}

// ComputeMetrics rolls closed trades and the equity curve up into Metrics.
// A run without trades reports all-zero metrics.
func ComputeMetrics(initialCapital, finalCapital float64, trades []domain.Position, curve []domain.EquityPoint) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	var m Metrics
	var winSum, lossSum float64
	for _, t := range trades {
		m.TotalPnL += t.PnL
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			winSum += t.PnL
		case t.PnL < 0:
			m.LosingTrades++
			lossSum += t.PnL
		}
	}
	m.TotalTrades = len(trades)
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100

	if initialCapital != 0 {
		m.TotalReturn = (finalCapital - initialCapital) / initialCapital * 100
	}
	m.MaxDrawdown = MaxDrawdown(curve)

	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
	}
	if m.AvgLoss != 0 {
		m.ProfitFactor = math.Abs(m.AvgWin / m.AvgLoss)
	}
	return m
}

// MaxDrawdown returns the largest percentage decline of equity below its
// running maximum, as a non-positive number.
func MaxDrawdown(curve []domain.EquityPoint) float64 {
	var peak, worst float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (p.Equity - peak) / peak * 100; dd < worst {
			worst = dd
		}
	}
	return worst
}
