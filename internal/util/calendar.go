package util

import (
	"fmt"
	"time"
	_ "time/tzdata" // Session zones must resolve on hosts without a zoneinfo database.

	"candlebt/internal/domain"
)

// DefaultSessionZone is the reference zone for session windows.
const DefaultSessionZone = "America/New_York"

// SessionCalendar locates a fixed-length daily session window in a reference
// time zone and groups bars by calendar day in that zone.
type SessionCalendar struct {
	loc    *time.Location
	hour   int
	minute int
	length time.Duration
}

// NewSessionCalendar creates a SessionCalendar whose session starts at
// hour:minute local time in loc and lasts length.
func NewSessionCalendar(loc *time.Location, hour, minute int, length time.Duration) *SessionCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionCalendar{
		loc:    loc,
		hour:   hour,
		minute: minute,
		length: length,
	}
}

// LoadSessionZone resolves an IANA zone name, defaulting to
// DefaultSessionZone when name is empty.
func LoadSessionZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultSessionZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading session zone %q: %w", name, err)
	}
	return loc, nil
}

// Location returns the reference zone.
func (sc *SessionCalendar) Location() *time.Location {
	return sc.loc
}

// Window returns the [start, end) session window on the calendar day of t in
// the reference zone.
func (sc *SessionCalendar) Window(t time.Time) (start, end time.Time) {
	y, m, d := t.In(sc.loc).Date()
	start = time.Date(y, m, d, sc.hour, sc.minute, 0, 0, sc.loc)
	return start, start.Add(sc.length)
}

// InSession reports whether t falls inside the session window of its day.
func (sc *SessionCalendar) InSession(t time.Time) bool {
	start, end := sc.Window(t)
	return !t.Before(start) && t.Before(end)
}

// SessionDay holds the indices of the bars that fall on one calendar day in
// the reference zone, in input order.
type SessionDay struct {
	Start   time.Time // session start on that day
	End     time.Time // session end on that day
	Indices []int
}

// GroupByDay buckets bars by calendar day in the reference zone. Days are
// returned in order of their first bar.
func (sc *SessionCalendar) GroupByDay(bars []domain.Bar) []SessionDay {
	var days []SessionDay
	pos := make(map[int64]int)
	for i, b := range bars {
		start, end := sc.Window(b.Timestamp)
		k, ok := pos[start.Unix()]
		if !ok {
			k = len(days)
			pos[start.Unix()] = k
			days = append(days, SessionDay{Start: start, End: end})
		}
		days[k].Indices = append(days[k].Indices, i)
	}
	return days
}
