package resample

import (
	"math"
	"sort"
	"time"

	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
)

const (
	// gapTolerance is the multiple of the base period above which a gap is
	// a session break (lunch, overnight, weekend) rather than trading time.
	gapTolerance = 1.5

	// epsilon keeps a cumulative time landing exactly on a multiple of the
	// target inside the bin it completes.
	epsilon = 0.1

	// DefaultBasePeriod is used when a series is too short to infer one.
	DefaultBasePeriod = 30
)

// Key identifies the synthetic bar a base bar belongs to. Date is the
// trading date for intraday targets and the first day of the week or month
// for calendar targets.
type Key struct {
	Date markethours.Day
	Bin  int
}

// Binner assigns consecutive base bars to synthetic bar keys. Binners are
// stateful and must see bars in chronological order.
type Binner interface {
	Key(b model.Bar) Key
}

// sessionBinner implements trading-date + cumulative-time grouping.
type sessionBinner struct {
	target  float64 // minutes
	base    float64 // minutes
	prev    time.Time
	date    markethours.Day
	cum     float64
	started bool
}

// NewSessionBinner groups bars of the given base period (minutes) into
// target-minute bins that never cross a trading-date boundary.
func NewSessionBinner(targetMinutes, baseMinutes int) Binner {
	if baseMinutes <= 0 {
		baseMinutes = DefaultBasePeriod
	}
	return &sessionBinner{target: float64(targetMinutes), base: float64(baseMinutes)}
}

func (s *sessionBinner) Key(b model.Bar) Key {
	dur := s.base
	if s.started {
		if gap := b.TS.Sub(s.prev).Minutes(); gap <= s.base*gapTolerance {
			dur = gap
		}
	}

	date := markethours.TradingDate(b.TS)
	if !s.started || date != s.date {
		s.date = date
		s.cum = 0
	}
	s.cum += dur
	s.prev = b.TS
	s.started = true

	return Key{Date: date, Bin: int(math.Floor((s.cum - epsilon) / s.target))}
}

// calendarBinner groups by ISO week or calendar month of the bar's own date.
type calendarBinner struct {
	monthly bool
}

func (c calendarBinner) Key(b model.Bar) Key {
	t := b.TS
	if c.monthly {
		return Key{Date: markethours.Day{Year: t.Year(), Month: t.Month(), Day: 1}}
	}
	// Monday of the ISO week
	back := (int(t.Weekday()) + 6) % 7
	return Key{Date: markethours.DayOf(t.AddDate(0, 0, -back))}
}

// DetectBasePeriod returns the most frequent gap between consecutive bars,
// in whole minutes. Ties resolve to the smaller gap. Series with fewer than
// two bars return DefaultBasePeriod.
func DetectBasePeriod(bars []model.Bar) int {
	if len(bars) < 2 {
		return DefaultBasePeriod
	}
	counts := make(map[float64]int, 8)
	for i := 1; i < len(bars); i++ {
		counts[bars[i].TS.Sub(bars[i-1].TS).Minutes()]++
	}

	gaps := make([]float64, 0, len(counts))
	for g := range counts {
		gaps = append(gaps, g)
	}
	sort.Float64s(gaps)

	best, bestN := gaps[0], 0
	for _, g := range gaps {
		if counts[g] > bestN {
			best, bestN = g, counts[g]
		}
	}
	if best < 1 {
		return DefaultBasePeriod
	}
	return int(best)
}
