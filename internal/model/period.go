package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Period identifies a bar period: "daily", "weekly", "monthly" or a
// positive number of minutes ("5", "30", "90", ...).
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Native intraday periods served directly by bar sources.
var nativeMinutes = map[int]bool{1: true, 5: true, 15: true, 30: true, 60: true}

// Custom intraday periods synthesized from a smaller base period.
var customBase = map[int]int{90: 30, 120: 60, 180: 30, 240: 60}

// ParsePeriod validates s and returns it as a Period.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	if !nativeMinutes[n] && customBase[n] == 0 {
		return "", fmt.Errorf("%w: %d minutes is neither native nor synthesizable", ErrUnknownPeriod, n)
	}
	return Period(strconv.Itoa(n)), nil
}

// Minutes returns the intraday length in minutes, or 0 for daily and calendar periods.
func (p Period) Minutes() int {
	n, err := strconv.Atoi(string(p))
	if err != nil {
		return 0
	}
	return n
}

// IsIntraday reports whether p is a minute period.
func (p Period) IsIntraday() bool { return p.Minutes() > 0 }

// IsCalendar reports whether p is a week or month period.
func (p Period) IsCalendar() bool { return p == PeriodWeekly || p == PeriodMonthly }

// IsCustom reports whether p must be synthesized from a smaller base period.
func (p Period) IsCustom() bool { return customBase[p.Minutes()] != 0 }

// BasePeriod returns the period to fetch from the bar source. Custom
// periods map to the base period they are built from: 90 and 180 from
// 30-minute bars (a 150-minute morning session needs a 30-minute
// granularity to reach 180), 120 and 240 from 60-minute bars.
func (p Period) BasePeriod() Period {
	if base, ok := customBase[p.Minutes()]; ok {
		return Period(strconv.Itoa(base))
	}
	return p
}

func (p Period) String() string { return string(p) }
