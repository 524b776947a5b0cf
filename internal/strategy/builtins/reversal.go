// Package builtins provides the built-in signal generators that ship with
// candlebt: hammer and shooting-star reversals and a session-range breakout.
package builtins

import (
	"fmt"

	"candlebt/internal/domain"
	"candlebt/internal/pattern"
	"candlebt/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.Strategy  = (*Reversal)(nil)
	_ strategy.Describer = (*Reversal)(nil)
)

const (
	HammerReversalName       = "hammer-reversal"
	ShootingStarReversalName = "shooting-star-reversal"

	DefaultTrendWindow = 6
	DefaultRiskReward  = 1.5
)

// Reversal trades a single-bar reversal candle that follows a trend. The
// pattern bar must be confirmed by the very next bar opening beyond it; the
// entry is that bar's open, the stop is the far end of the pattern bar and the
// target sits riskReward times the risk away from the entry.
type Reversal struct {
	name        string
	description string
	signal      domain.Signal
	trend       pattern.Direction
	match       func(domain.Bar) bool

	window          int
	riskReward      float64
	relaxedFallback bool
}

// NewHammerReversal creates the long-side reversal: a hammer after a
// downtrend, entered when the next bar opens at or above the hammer high.
func NewHammerReversal(window int, riskReward float64) *Reversal {
	return &Reversal{
		name: HammerReversalName,
		description: fmt.Sprintf("Hammer after a %d-bar downtrend; long when the next bar "+
			"opens at or above the hammer high; stop at the hammer low, target %.1fR.", window, riskReward),
		signal: domain.SignalLong,
		trend:  pattern.Down,
		match: func(b domain.Bar) bool {
			return pattern.IsHammer(b, pattern.DefaultBodyRatio, pattern.DefaultWickRatio)
		},
		window:          window,
		riskReward:      riskReward,
		relaxedFallback: true,
	}
}

// NewShootingStarReversal creates the short-side reversal: a shooting star
// after an uptrend, entered when the next bar opens at or below the star low.
func NewShootingStarReversal(window int, riskReward float64) *Reversal {
	return &Reversal{
		name: ShootingStarReversalName,
		description: fmt.Sprintf("Shooting star after a %d-bar uptrend; short when the next bar "+
			"opens at or below the star low; stop at the star high, target %.1fR.", window, riskReward),
		signal: domain.SignalShort,
		trend:  pattern.Up,
		match: func(b domain.Bar) bool {
			return pattern.IsShootingStar(b, pattern.DefaultBodyRatio, pattern.DefaultWickRatio)
		},
		window:          window,
		riskReward:      riskReward,
		relaxedFallback: true,
	}
}

// SetRelaxedFallback controls whether a failed strict trend test falls back
// to the relaxed one. It is on by default.
func (r *Reversal) SetRelaxedFallback(on bool) {
	r.relaxedFallback = on
}

// Name returns the strategy identifier.
func (r *Reversal) Name() string { return r.name }

// Description returns the entry and exit rules.
func (r *Reversal) Description() string { return r.description }

// GenerateSignals scans bars[window : len-1]. The last bar is never scanned
// because its breakout bar does not exist yet.
func (r *Reversal) GenerateSignals(bars []domain.Bar) []domain.Annotation {
	out := make([]domain.Annotation, len(bars))

	for i := r.window; i < len(bars)-1; i++ {
		bar := bars[i]
		if !r.match(bar) {
			continue
		}
		if r.signal == domain.SignalLong {
			out[i].IsHammer = true
		} else {
			out[i].IsShootingStar = true
		}

		hasTrend := pattern.DetectTrend(bars, i, r.window, r.trend, true)
		if !hasTrend && r.relaxedFallback {
			hasTrend = pattern.DetectTrend(bars, i, r.window, r.trend, false)
		}
		out[i].HasTrend = hasTrend
		if !hasTrend {
			continue
		}

		// Only the immediate next bar may confirm; otherwise the pattern is dropped.
		next := bars[i+1]
		var entry, stop, risk float64
		switch r.signal {
		case domain.SignalLong:
			if !(next.High > bar.High && next.Open >= bar.High) {
				continue
			}
			entry, stop = next.Open, bar.Low
			risk = entry - stop
		case domain.SignalShort:
			if !(next.Low < bar.Low && next.Open <= bar.Low) {
				continue
			}
			entry, stop = next.Open, bar.High
			risk = stop - entry
		}
		if !(risk > 0) {
			continue
		}

		target := entry + risk*r.riskReward
		if r.signal == domain.SignalShort {
			target = entry - risk*r.riskReward
		}

		sig := &out[i+1]
		sig.Signal = r.signal
		sig.EntryPrice = entry
		sig.StopLoss = stop
		sig.Target = target
		sig.PatternTime = bar.Timestamp
	}
	return out
}
