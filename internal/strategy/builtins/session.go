package builtins

import (
	"fmt"
	"math"
	"time"

	"candlebt/internal/domain"
	"candlebt/internal/strategy"
	"candlebt/internal/util"
)

var (
	_ strategy.Strategy  = (*SessionBreakout)(nil)
	_ strategy.Describer = (*SessionBreakout)(nil)
)

const (
	SessionBreakoutName = "session-breakout"

	DefaultSessionHour       = 8
	DefaultSessionMinute     = 0
	DefaultSessionRiskReward = 8.0

	// SessionLength is the duration of the reference range.
	SessionLength = 4 * time.Hour
)

type breakoutState int

const (
	flat breakoutState = iota
	breakoutUp
	breakoutDown
)

// SessionBreakout fades failed breakouts of the opening session range. Each
// day it measures the high and low of the first four hours from the session
// start, waits for a bar to close outside that range, and trades back toward
// the range once a bar sits entirely inside it again.
type SessionBreakout struct {
	cal        *util.SessionCalendar
	riskReward float64
}

// NewSessionBreakout creates a SessionBreakout whose range starts at
// hour:minute in loc.
func NewSessionBreakout(hour, minute int, riskReward float64, loc *time.Location) *SessionBreakout {
	return &SessionBreakout{
		cal:        util.NewSessionCalendar(loc, hour, minute, SessionLength),
		riskReward: riskReward,
	}
}

// Name returns "session-breakout".
func (s *SessionBreakout) Name() string { return SessionBreakoutName }

// Description returns the entry and exit rules.
func (s *SessionBreakout) Description() string {
	return fmt.Sprintf("Four-hour session range (%s); after a close outside the range, enter on the first bar "+
		"fully back inside it (short at its high after an upside break, long at its low "+
		"after a downside break); stop at the breakout extreme.", s.cal.Location())
}

// GenerateSignals processes every calendar day of the reference zone
// independently. Bars before the session window are ignored.
func (s *SessionBreakout) GenerateSignals(bars []domain.Bar) []domain.Annotation {
	out := make([]domain.Annotation, len(bars))

	for _, day := range s.cal.GroupByDay(bars) {
		rangeHigh, rangeLow, ok := s.sessionRange(bars, day)
		if !ok {
			continue
		}

		state := flat
		var trackHigh, trackLow float64

		for _, idx := range day.Indices {
			b := bars[idx]
			if b.Timestamp.Before(day.End) {
				continue
			}
			out[idx].RangeHigh = rangeHigh
			out[idx].RangeLow = rangeLow

			if state == flat {
				switch {
				case b.Close > rangeHigh:
					state = breakoutUp
					trackHigh, trackLow = b.High, b.Low
				case b.Close < rangeLow:
					state = breakoutDown
					trackHigh, trackLow = b.High, b.Low
				}
			}
			if state == flat {
				continue
			}

			// Explicit comparisons so a NaN bar cannot clobber the extremes.
			if b.High > trackHigh {
				trackHigh = b.High
			}
			if b.Low < trackLow {
				trackLow = b.Low
			}

			if !inside(b, rangeLow, rangeHigh) {
				continue
			}

			a := &out[idx]
			switch state {
			case breakoutUp:
				entry, stop := b.High, trackHigh
				if risk := stop - entry; risk > 0 {
					a.Signal = domain.SignalShort
					a.EntryPrice = entry
					a.StopLoss = stop
					a.Target = entry - risk*s.riskReward
					a.PatternTime = day.Start
				}
			case breakoutDown:
				entry, stop := b.Low, trackLow
				if risk := entry - stop; risk > 0 {
					a.Signal = domain.SignalLong
					a.EntryPrice = entry
					a.StopLoss = stop
					a.Target = entry + risk*s.riskReward
					a.PatternTime = day.Start
				}
			}
			// Re-entry ends the breakout whether or not a trade was possible.
			state = flat
			trackHigh, trackLow = 0, 0
		}
	}
	return out
}

// sessionRange returns the high and low of the bars inside the session window
// of day. Bars with a missing high or low do not contribute.
func (s *SessionBreakout) sessionRange(bars []domain.Bar, day util.SessionDay) (high, low float64, ok bool) {
	for _, idx := range day.Indices {
		b := bars[idx]
		if !s.cal.InSession(b.Timestamp) || math.IsNaN(b.High) || math.IsNaN(b.Low) {
			continue
		}
		if !ok {
			high, low, ok = b.High, b.Low, true
			continue
		}
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, ok
}

func inside(b domain.Bar, low, high float64) bool {
	within := func(v float64) bool { return v >= low && v <= high }
	return within(b.Open) && within(b.High) && within(b.Low) && within(b.Close)
}
