// Package resample synthesizes bar periods the data source does not serve:
// custom intraday periods (90/120/180/240 minutes) grouped by trading
// session, and weekly/monthly bars grouped by calendar.
//
// The Builder consumes base bars in order and keeps one "forming" bar.
// When a base bar arrives with a new key, the forming bar is finalized and
// returned. Groups are contiguous in a sorted series, so the streaming
// result equals a group-by over (key).
package resample

import "signal-monitor/internal/model"

// Builder folds base bars into synthetic bars.
// Designed to run in a single goroutine (single consumer).
type Builder struct {
	binner Binner

	key     Key
	cur     model.Bar
	forming bool
}

// NewBuilder creates a builder using binner to assign keys.
func NewBuilder(binner Binner) *Builder {
	return &Builder{binner: binner}
}

// Add feeds the next base bar. When b starts a new group the previous
// forming bar is finalized and returned with ok = true.
func (bd *Builder) Add(b model.Bar) (done model.Bar, ok bool) {
	key := bd.binner.Key(b)

	if bd.forming && key == bd.key {
		// Same group: merge OHLCV
		fc := &bd.cur
		if b.High > fc.High {
			fc.High = b.High
		}
		if b.Low < fc.Low {
			fc.Low = b.Low
		}
		fc.Close = b.Close
		fc.Volume += b.Volume
		if b.OpenInterest != nil {
			fc.OpenInterest = model.OI(*b.OpenInterest)
		}
		if b.TS.After(fc.TS) {
			fc.TS = b.TS
		}
		return model.Bar{}, false
	}

	if bd.forming {
		done, ok = bd.finalize()
	}

	bd.key = key
	bd.cur = b
	if b.OpenInterest != nil {
		bd.cur.OpenInterest = model.OI(*b.OpenInterest)
	}
	bd.forming = true
	return done, ok
}

// Flush finalizes the forming bar, if any. A partial group is still emitted.
func (bd *Builder) Flush() (model.Bar, bool) {
	if !bd.forming {
		return model.Bar{}, false
	}
	return bd.finalize()
}

func (bd *Builder) finalize() (model.Bar, bool) {
	bd.forming = false
	return bd.cur, true
}
