// Package report renders backtest results for the terminal.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"candlebt/internal/engine"
)

const (
	ruleWidth = 80
	timeFmt   = "2006-01-02 15:04"
)

// NoTradesMessage is printed in place of the trade log of a run without trades.
const NoTradesMessage = "No trades executed. Try different parameters or longer time period."

// WriteSummary writes the results block of res to w: capital, performance,
// trade counts and, when trades exist, risk metrics followed by the trade
// log. currency prefixes every money value.
func WriteSummary(w io.Writer, res *engine.Result, currency string) error {
	var b bytes.Buffer
	rule := strings.Repeat("=", ruleWidth)
	money := func(v float64) string { return currency + FormatMoney(v) }

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "BACKTEST RESULTS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Strategy: %s\n", res.Strategy)
	fmt.Fprintf(&b, "Symbol: %s\n", res.Symbol)

	fmt.Fprintf(&b, "\nCapital:\n")
	fmt.Fprintf(&b, "  Initial: %s\n", money(res.InitialCapital))
	fmt.Fprintf(&b, "  Final: %s\n", money(res.FinalCapital))

	fmt.Fprintf(&b, "\nPerformance:\n")
	fmt.Fprintf(&b, "  Total Return: %s\n", FormatPct(res.TotalReturn))
	fmt.Fprintf(&b, "  Total P&L: %s\n", money(res.TotalPnL))
	fmt.Fprintf(&b, "  Max Drawdown: %s\n", FormatPct(res.MaxDrawdown))

	fmt.Fprintf(&b, "\nTrades:\n")
	fmt.Fprintf(&b, "  Total: %s\n", FormatCount(res.TotalTrades))
	fmt.Fprintf(&b, "  Winning: %s\n", FormatCount(res.WinningTrades))
	fmt.Fprintf(&b, "  Losing: %s\n", FormatCount(res.LosingTrades))
	fmt.Fprintf(&b, "  Win Rate: %s\n", FormatPct(res.WinRate))

	if res.TotalTrades > 0 {
		fmt.Fprintf(&b, "\nRisk Metrics:\n")
		fmt.Fprintf(&b, "  Avg Win: %s\n", money(res.AvgWin))
		fmt.Fprintf(&b, "  Avg Loss: %s\n", money(res.AvgLoss))
		fmt.Fprintf(&b, "  Profit Factor: %.2f\n", res.ProfitFactor)
	}
	fmt.Fprintln(&b, rule)

	if len(res.Trades) == 0 {
		fmt.Fprintf(&b, "\n%s\n", NoTradesMessage)
	} else {
		fmt.Fprintf(&b, "\nTrade Log:\n")
		writeTradeLog(&b, res)
	}

	_, err := w.Write(b.Bytes())
	return err
}

// writeTradeLog writes one aligned row per closed trade.
func writeTradeLog(w io.Writer, res *engine.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tSide\tPattern\tEntry Time\tEntry\tQty\tStop\tTarget\tExit Time\tExit\tReason\tP&L\tP&L %\t")
	for i, t := range res.Trades {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1,
			t.Side,
			formatTime(t.PatternTime),
			formatTime(t.EntryTime),
			FormatPrice(t.EntryPrice),
			FormatInt(t.Quantity),
			FormatPrice(t.StopLoss),
			FormatPrice(t.Target),
			formatTime(t.ExitTime),
			FormatPrice(t.ExitPrice),
			t.ExitReason,
			FormatMoney(t.PnL),
			FormatPct(t.PnLPercent),
		)
	}
	tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeFmt)
}
