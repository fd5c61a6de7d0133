package resample

import (
	"fmt"
	"log"

	"signal-monitor/internal/model"
)

// NewBinner returns the binner for target. Intraday targets need the base
// period of the input series in minutes.
func NewBinner(target model.Period, baseMinutes int) (Binner, error) {
	switch {
	case target == model.PeriodWeekly:
		return calendarBinner{}, nil
	case target == model.PeriodMonthly:
		return calendarBinner{monthly: true}, nil
	case target.IsIntraday():
		return NewSessionBinner(target.Minutes(), baseMinutes), nil
	}
	return nil, fmt.Errorf("%w: cannot resample to %q", model.ErrUnknownPeriod, target)
}

// Resample builds a new series of target-period bars from s. The input is
// left untouched. Intraday targets infer the base period from the series.
func Resample(s model.BarSeries, target model.Period) (model.BarSeries, error) {
	out := model.BarSeries{Symbol: s.Symbol, Period: target}
	if s.Empty() {
		return out, nil
	}

	base := 0
	if target.IsIntraday() {
		base = DetectBasePeriod(s.Bars)
		if base >= target.Minutes() {
			log.Printf("[resample] %s: base period %dm is not below target %s", s.Symbol, base, target)
		}
	}
	binner, err := NewBinner(target, base)
	if err != nil {
		return out, err
	}

	b := NewBuilder(binner)
	bars := make([]model.Bar, 0, len(s.Bars)/2+1)
	for _, bar := range s.Bars {
		if done, ok := b.Add(bar); ok {
			bars = append(bars, done)
		}
	}
	if done, ok := b.Flush(); ok {
		bars = append(bars, done)
	}
	out.Bars = bars
	return out, nil
}
