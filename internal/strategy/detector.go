package strategy

import (
	"time"

	"signal-monitor/internal/indicator"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
)

// Scope selects the bars a detection scans. A non-zero Start or End selects
// time-range mode; otherwise Lookback applies (0 = entire history,
// negative values are taken as their magnitude).
type Scope struct {
	Lookback int
	Start    time.Time
	End      time.Time
}

// Lookback returns a trailing-window scope.
func Lookback(n int) Scope { return Scope{Lookback: n} }

// Between returns a time-range scope.
func Between(start, end time.Time) Scope { return Scope{Start: start, End: end} }

// IsRange reports whether the scope is a time range.
func (s Scope) IsRange() bool { return !s.Start.IsZero() || !s.End.IsZero() }

// Detector finds crossover signals in an indicator frame.
type Detector struct{}

// NewDetector creates a detector.
func NewDetector() *Detector { return &Detector{} }

// Detect returns the crossovers inside scope in chronological order. Each
// signal's Offset counts bars from the last row of the full frame. Frames
// without indicator columns or scopes with fewer than two bars yield an
// empty list.
func (d *Detector) Detect(f indicator.Frame, scope Scope) []model.Signal {
	signals := make([]model.Signal, 0)
	if !f.Annotated() {
		return signals
	}

	from, to := d.bounds(f, scope)
	if to-from+1 < 2 {
		return signals
	}

	last := f.Len() - 1
	bars := f.Series.Bars
	for i := from + 1; i <= to; i++ {
		dir, ok := Cross(f.Fast[i-1], f.Slow[i-1], f.Fast[i], f.Slow[i])
		if !ok {
			continue
		}
		signals = append(signals, model.Signal{
			TS:        bars[i].TS,
			Direction: dir,
			Price:     bars[i].Close,
			Values:    f.ValuesAt(i),
			Offset:    last - i,
		})
	}
	return signals
}

// bounds returns the inclusive row range [from, to] of the scope. An empty
// scope returns to < from.
func (d *Detector) bounds(f indicator.Frame, scope Scope) (from, to int) {
	n := f.Len()
	if !scope.IsRange() {
		l := scope.Lookback
		if l < 0 {
			l = -l
		}
		if l == 0 || l+1 >= n {
			return 0, n - 1
		}
		return n - (l + 1), n - 1
	}

	loc := f.Series.Location()
	start := markethours.Normalize(scope.Start, loc)
	end := markethours.Normalize(scope.End, loc)
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return 0, -1
	}

	from, to = -1, -1
	for i, b := range f.Series.Bars {
		if !start.IsZero() && b.TS.Before(start) {
			continue
		}
		if !end.IsZero() && b.TS.After(end) {
			break
		}
		if from < 0 {
			from = i
		}
		to = i
	}
	if from < 0 {
		return 0, -1
	}
	// One bar before the range so the first in-range bar has a predecessor.
	if from > 0 {
		from--
	}
	return from, to
}
