package api

import (
	"candlebt/internal/engine"
	"candlebt/internal/pattern"
	"candlebt/pkg/candlebt"
)

// toRunResult converts an engine result into its wire form. Bars and signals
// are included only when series is set.
func toRunResult(res *engine.Result, series bool) candlebt.RunResult {
	out := candlebt.RunResult{
		RunID:          res.RunID,
		Symbol:         res.Symbol,
		Strategy:       res.Strategy,
		InitialCapital: res.InitialCapital,
		FinalCapital:   res.FinalCapital,
		TotalTrades:    res.TotalTrades,
		WinningTrades:  res.WinningTrades,
		LosingTrades:   res.LosingTrades,
		WinRate:        res.WinRate,
		TotalPnL:       res.TotalPnL,
		TotalReturn:    res.TotalReturn,
		MaxDrawdown:    res.MaxDrawdown,
		AvgWin:         res.AvgWin,
		AvgLoss:        res.AvgLoss,
		ProfitFactor:   res.ProfitFactor,
		Trades:         make([]candlebt.Trade, 0, len(res.Trades)),
		Equity:         make([]candlebt.EquityPoint, 0, len(res.EquityCurve)),
	}
	for _, t := range res.Trades {
		out.Trades = append(out.Trades, candlebt.Trade{
			Symbol:      t.Symbol,
			Side:        string(t.Side),
			PatternTime: t.PatternTime,
			EntryTime:   t.EntryTime,
			EntryPrice:  t.EntryPrice,
			Quantity:    t.Quantity,
			StopLoss:    t.StopLoss,
			Target:      t.Target,
			ExitTime:    t.ExitTime,
			ExitPrice:   t.ExitPrice,
			ExitReason:  string(t.ExitReason),
			PnL:         t.PnL,
			PnLPercent:  t.PnLPercent,
		})
	}
	for _, p := range res.EquityCurve {
		out.Equity = append(out.Equity, candlebt.EquityPoint{Time: p.Timestamp, Equity: p.Equity, Cash: p.Cash})
	}

	if !series {
		return out
	}
	for i, b := range res.Bars {
		wb := candlebt.Bar{
			Time: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		}
		for _, id := range pattern.Detect(res.Bars, i) {
			wb.Patterns = append(wb.Patterns, string(id))
		}
		out.Bars = append(out.Bars, wb)
	}
	for i, a := range res.Annotations {
		if !a.HasSignal() {
			continue
		}
		out.Signals = append(out.Signals, candlebt.Signal{
			Index:       i,
			Time:        res.Bars[i].Timestamp,
			Side:        a.Signal.String(),
			EntryPrice:  a.EntryPrice,
			StopLoss:    a.StopLoss,
			Target:      a.Target,
			PatternTime: a.PatternTime,
		})
	}
	return out
}
