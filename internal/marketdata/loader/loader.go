// Package loader turns raw source bars into the analysis series for a
// requested period: fetch the base period, keep trading hours, scale
// volume, then aggregate custom periods.
package loader

import (
	"context"
	"fmt"
	"log"
	"time"

	"signal-monitor/internal/marketdata/resample"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
)

// Loader builds analysis series from a BarSource.
type Loader struct {
	source  model.BarSource
	metrics *metrics.Metrics
}

// New creates a loader. m may be nil.
func New(source model.BarSource, m *metrics.Metrics) *Loader {
	return &Loader{source: source, metrics: m}
}

// Load returns the bars of q.Symbol at q.Period for contract c.
//
// Periods read straight from the source are fetched with the q.Start/q.End
// range. Aggregated periods (custom minutes, or weeks and months built from
// daily bars) are fetched unbounded and aggregated first; the range then
// selects whole synthetic bars by their closing timestamp, so the first
// trading date in range is binned from its session open.
//
// Empty results are reported as ErrNoData; malformed source rows as
// ErrMalformedBars.
func (l *Loader) Load(ctx context.Context, q model.BarQuery, c model.ContractInfo) (model.BarSeries, error) {
	target := q.Period
	aggregate := target.IsCustom()
	fetchQ := q
	if aggregate {
		fetchQ.Start, fetchQ.End = time.Time{}, time.Time{}
	}
	raw, err := l.fetch(ctx, fetchQ, target.BasePeriod())
	if err != nil {
		return model.BarSeries{}, err
	}

	// Calendar periods fall back to aggregating daily bars when the source
	// has none stored for them.
	if raw.Empty() && target.IsCalendar() {
		fetchQ.Start, fetchQ.End = time.Time{}, time.Time{}
		raw, err = l.fetch(ctx, fetchQ, model.PeriodDaily)
		if err != nil {
			return model.BarSeries{}, err
		}
		aggregate = true
	}
	if raw.Empty() {
		return raw, fmt.Errorf("%w: %s %s", model.ErrNoData, q.Symbol, target)
	}

	raw = raw.Normalize()
	if err := raw.Validate(); err != nil {
		return model.BarSeries{}, err
	}

	if q.Market == model.MarketFutures && raw.Period.IsIntraday() {
		before := raw.Len()
		raw = markethours.FilterSession(raw, c.Session)
		if dropped := before - raw.Len(); dropped > 0 {
			log.Printf("[loader] %s: dropped %d bars outside %s hours", q.Symbol, dropped, c.Session)
		}
	}
	raw = ScaleVolume(raw, c.VolumeScale)

	if !aggregate {
		raw.Period = target
		return raw, nil
	}

	start := time.Now()
	out, err := resample.Resample(raw, target)
	l.metrics.ObserveResample(start)
	if err != nil {
		return model.BarSeries{}, err
	}
	out = out.Between(q.Start, q.End)
	if out.Empty() {
		return out, fmt.Errorf("%w: %s %s after aggregation", model.ErrNoData, q.Symbol, target)
	}
	return out, nil
}

func (l *Loader) fetch(ctx context.Context, q model.BarQuery, period model.Period) (model.BarSeries, error) {
	q.Period = period
	s, err := l.source.FetchBars(ctx, q)
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("loader: fetch %s %s: %w", q.Symbol, period, err)
	}
	if s.Symbol == "" {
		s.Symbol = q.Symbol
	}
	if s.Period == "" {
		s.Period = period
	}
	return s, nil
}

// ScaleVolume multiplies volume and open interest by scale. A scale of 1
// (or a non-positive one) returns s unchanged.
func ScaleVolume(s model.BarSeries, scale float64) model.BarSeries {
	if scale <= 0 || scale == 1 {
		return s
	}
	bars := make([]model.Bar, len(s.Bars))
	for i, b := range s.Bars {
		b.Volume *= scale
		if b.OpenInterest != nil {
			b.OpenInterest = model.OI(*b.OpenInterest * scale)
		}
		bars[i] = b
	}
	return s.WithBars(bars)
}
