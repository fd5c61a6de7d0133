package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is a single OHLCV bar. TS is the bar's timestamp as reported by the
// data source (wall clock in the exchange's location).
type Bar struct {
	TS           time.Time `json:"ts"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	OpenInterest *float64  `json:"open_interest,omitempty"` // nil when the source has no OI column
}

// Valid reports whether all price fields are finite numbers.
func (b *Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// OI returns a pointer to a copy of v, for building bars with open interest.
func OI(v float64) *float64 { return &v }

// BarSeries is an ordered sequence of bars for one (symbol, period).
// Timestamps are strictly increasing. Transformations return new series.
type BarSeries struct {
	Symbol string `json:"symbol"`
	Period Period `json:"period"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s BarSeries) Len() int { return len(s.Bars) }

// Empty reports whether the series has no bars.
func (s BarSeries) Empty() bool { return len(s.Bars) == 0 }

// Location returns the location of the series timestamps (UTC when empty).
func (s BarSeries) Location() *time.Location {
	if len(s.Bars) == 0 {
		return time.UTC
	}
	return s.Bars[0].TS.Location()
}

// WithBars returns a copy of the series metadata holding bars.
func (s BarSeries) WithBars(bars []Bar) BarSeries {
	return BarSeries{Symbol: s.Symbol, Period: s.Period, Bars: bars}
}

// Validate checks the series invariants: finite OHLCV and strictly
// increasing timestamps.
func (s BarSeries) Validate() error {
	for i := range s.Bars {
		b := &s.Bars[i]
		if !b.Valid() {
			return fmt.Errorf("%w: %s bar %d at %s has non-finite fields", ErrMalformedBars, s.Symbol, i, b.TS.Format(time.RFC3339))
		}
		if i > 0 && !b.TS.After(s.Bars[i-1].TS) {
			return fmt.Errorf("%w: %s bar %d at %s not after %s", ErrMalformedBars, s.Symbol, i,
				b.TS.Format(time.RFC3339), s.Bars[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}

// Normalize returns a copy sorted by timestamp with duplicate timestamps
// collapsed (the later row wins, matching an upsert).
func (s BarSeries) Normalize() BarSeries {
	bars := make([]Bar, len(s.Bars))
	copy(bars, s.Bars)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].TS.Equal(b.TS) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return s.WithBars(out)
}

// Between returns the bars whose timestamp lies in [start, end].
// A zero start or end leaves that side open.
func (s BarSeries) Between(start, end time.Time) BarSeries {
	out := make([]Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if !start.IsZero() && b.TS.Before(start) {
			continue
		}
		if !end.IsZero() && b.TS.After(end) {
			continue
		}
		out = append(out, b)
	}
	return s.WithBars(out)
}
