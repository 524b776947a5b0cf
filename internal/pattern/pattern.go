// Package pattern classifies candlesticks and the trend leading into them.
// Every function is pure: it reads bars and never retains or modifies them.
package pattern

import (
	"math"

	"candlebt/internal/domain"
)

// ID names a candlestick pattern.
type ID string

const (
	Hammer           ID = "Hammer"
	ShootingStar     ID = "ShootingStar"
	Doji             ID = "Doji"
	BullishEngulfing ID = "BullishEngulfing"
)

// Default thresholds.
const (
	DefaultBodyRatio     = 0.25 // max body as a fraction of the range
	DefaultWickRatio     = 2.5  // min dominant wick as a multiple of the body
	DefaultDojiThreshold = 0.1

	minRange        = 1e-4
	minBodyPct      = 0.05 // below this the candle is a doji, not a hammer/star
	maxOppositeWick = 0.5  // opposite wick as a multiple of the body
	minDominantPct  = 0.6  // dominant wick as a fraction of the range
)

type parts struct {
	body, rng, upper, lower float64
}

func split(b domain.Bar) parts {
	return parts{
		body:  math.Abs(b.Close - b.Open),
		rng:   b.High - b.Low,
		upper: b.High - math.Max(b.Open, b.Close),
		lower: math.Min(b.Open, b.Close) - b.Low,
	}
}

// degenerate reports bars whose range is zero, tiny, or not a number.
func (p parts) degenerate() bool {
	return !(p.rng >= minRange) || math.IsInf(p.rng, 0) || math.IsNaN(p.body)
}

// IsHammer reports whether b is a hammer: a small body near the top of the
// range with a long lower wick.
func IsHammer(b domain.Bar, bodyRatio, wickRatio float64) bool {
	p := split(b)
	if p.degenerate() || p.body < minBodyPct*p.rng {
		return false
	}
	return p.body/p.rng <= bodyRatio &&
		p.lower >= wickRatio*p.body &&
		p.upper <= maxOppositeWick*p.body &&
		p.lower/p.rng >= minDominantPct
}

// IsShootingStar reports whether b is a shooting star, the mirror image of a
// hammer: a small body near the bottom of the range with a long upper wick.
func IsShootingStar(b domain.Bar, bodyRatio, wickRatio float64) bool {
	p := split(b)
	if p.degenerate() || p.body < minBodyPct*p.rng {
		return false
	}
	return p.body/p.rng <= bodyRatio &&
		p.upper >= wickRatio*p.body &&
		p.lower <= maxOppositeWick*p.body &&
		p.upper/p.rng >= minDominantPct
}

// IsDoji reports whether the body of b is at most threshold of its range.
func IsDoji(b domain.Bar, threshold float64) bool {
	p := split(b)
	if p.rng == 0 || math.IsNaN(p.rng) || math.IsNaN(p.body) {
		return false
	}
	return p.body/p.rng <= threshold
}

// IsBullishEngulfing reports whether curr is a bullish candle whose body
// strictly contains the body of the bearish candle prev.
func IsBullishEngulfing(prev, curr domain.Bar) bool {
	prevBearish := prev.Close < prev.Open
	currBullish := curr.Close > curr.Open
	engulfs := curr.Open < prev.Close && curr.Close > prev.Open
	return prevBearish && currBullish && engulfs
}

// Detect returns the IDs of every single- and two-bar pattern found at
// bars[i] using default thresholds.
func Detect(bars []domain.Bar, i int) []ID {
	if i < 0 || i >= len(bars) {
		return nil
	}
	b := bars[i]
	var ids []ID
	if IsHammer(b, DefaultBodyRatio, DefaultWickRatio) {
		ids = append(ids, Hammer)
	}
	if IsShootingStar(b, DefaultBodyRatio, DefaultWickRatio) {
		ids = append(ids, ShootingStar)
	}
	if IsDoji(b, DefaultDojiThreshold) {
		ids = append(ids, Doji)
	}
	if i > 0 && IsBullishEngulfing(bars[i-1], b) {
		ids = append(ids, BullishEngulfing)
	}
	return ids
}
