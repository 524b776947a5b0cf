package pattern

import "candlebt/internal/domain"

// Direction is the direction of the run of bars preceding a pattern.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// relaxedShare is the fraction of window bars that must close in the trend
// direction for the relaxed test to pass.
const relaxedShare = 0.7

// DetectTrend reports whether the window bars immediately before bars[index]
// form a trend in direction dir.
//
// In strict mode each of those bars is compared with the bar before it: for
// Down every high must be strictly lower than the previous high, for Up every
// low must be strictly higher than the previous low. Strict mode therefore
// also needs the bar preceding the window.
//
// In relaxed mode at least 70% of the window bars must be bearish (Down) or
// bullish (Up).
func DetectTrend(bars []domain.Bar, index, window int, dir Direction, strict bool) bool {
	if window < 1 || index < window || index > len(bars) {
		return false
	}
	if strict {
		return strictTrend(bars, index, window, dir)
	}
	return relaxedTrend(bars, index, window, dir)
}

func strictTrend(bars []domain.Bar, index, window int, dir Direction) bool {
	for k := 1; k <= window; k++ {
		cur, prev := index-k, index-k-1
		if prev < 0 {
			return false
		}
		switch dir {
		case Down:
			if !(bars[cur].High < bars[prev].High) {
				return false
			}
		case Up:
			if !(bars[cur].Low > bars[prev].Low) {
				return false
			}
		}
	}
	return true
}

func relaxedTrend(bars []domain.Bar, index, window int, dir Direction) bool {
	count := 0
	for k := 1; k <= window; k++ {
		b := bars[index-k]
		switch dir {
		case Down:
			if b.Close < b.Open {
				count++
			}
		case Up:
			if b.Close > b.Open {
				count++
			}
		}
	}
	return float64(count) >= relaxedShare*float64(window)
}
