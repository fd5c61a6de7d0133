package markethours

import (
	"fmt"
	"strings"
	"time"

	"signal-monitor/internal/model"
)

// CST is China Standard Time (UTC+8), the wall clock of exchange bar data.
var CST = time.FixedZone("CST", 8*3600)

// Session hours (wall clock)
const (
	DayOpenHour    = 9
	DayOpenMinute  = 0
	DayCloseHour   = 15
	DayCloseMinute = 15

	// NightOpenHour is the earliest start of a night session. Night bars
	// belong to the next trading date.
	NightOpenHour = 21

	// TradingDateShift moves a night-session bar (>= 21:00) onto the
	// following calendar date while leaving day-session bars in place.
	TradingDateShift = 3 * time.Hour
)

// Day is a calendar date, usable as a map key.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar date of t in its own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// TradingDate labels t with its trading date: the calendar date of
// t + TradingDateShift, evaluated on t's own wall clock. A night session
// opening at 21:00 and the following morning's day session share a label.
func TradingDate(t time.Time) Day {
	return DayOf(t.Add(TradingDateShift))
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// InDaySession reports whether t's wall-clock time lies within
// 09:00-15:15 inclusive.
func InDaySession(t time.Time) bool {
	hm := t.Hour()*60 + t.Minute()
	return hm >= DayOpenHour*60+DayOpenMinute && hm <= DayCloseHour*60+DayCloseMinute
}

// InSession reports whether a bar at t belongs to valid trading hours for
// a contract of the given session type. Contracts with a night session keep
// every bar the source delivers.
func InSession(t time.Time, session model.SessionType) bool {
	if session == model.SessionDayOnly {
		return InDaySession(t)
	}
	return true
}

// FilterSession drops bars outside the contract's trading hours.
func FilterSession(s model.BarSeries, session model.SessionType) model.BarSeries {
	if session != model.SessionDayOnly {
		return s
	}
	out := make([]model.Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if InSession(b.TS, session) {
			out = append(out, b)
		}
	}
	return s.WithBars(out)
}

var boundLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseBound parses a query time bound and normalizes it to loc. Strings
// without a zone are read as loc wall clock; strings with an offset are
// converted into loc. Empty input yields the zero time.
func ParseBound(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = CST
	}
	for _, layout := range boundLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, s); err == nil {
				return t.In(loc), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", model.ErrInvalidRange, s)
}

// Normalize converts t into loc. A zero time stays zero.
func Normalize(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() || loc == nil {
		return t
	}
	return t.In(loc)
}
