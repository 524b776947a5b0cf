package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"candlebt/internal/domain"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	if n < 0 {
		return "-" + groupDigits(fmt.Sprintf("%d", -n))
	}
	return groupDigits(fmt.Sprintf("%d", n))
}

// groupDigits inserts comma separators into a string of decimal digits.
func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats v rounded half away from zero to two decimals with
// comma separators, e.g. "1,234,567.89". Non-finite values render as "-".
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	s := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if sign != "" && strings.Trim(whole+frac, "0") == "" {
		sign = ""
	}
	return sign + groupDigits(whole) + "." + frac
}

// FormatPct formats a percentage value given in percent units as "X.XX%".
func FormatPct(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

// FormatPrice formats a price value as X.XX, or "-" for zero.
func FormatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatCount formats a count, using K suffix for large values.
func FormatCount(n int) string {
	if n >= 100_000 {
		return fmt.Sprintf("%.0fK", float64(n)/1e3)
	}
	return FormatInt(int64(n))
}

// Currency returns the money prefix used when reporting in market.
func Currency(market domain.Market) string {
	switch market {
	case domain.MarketNSE, domain.MarketBSE:
		return "Rs."
	default:
		return "$"
	}
}
