package strategy

import (
	"math"
	"testing"
	"time"

	"signal-monitor/internal/indicator"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
)

var nan = math.NaN()

var t0 = time.Date(2024, 3, 1, 15, 0, 0, 0, markethours.CST)

func day(i int) time.Time { return t0.AddDate(0, 0, i) }

// makeFrame builds a DKX frame from fast/slow columns; NaN marks undefined.
func makeFrame(fast, slow []float64) indicator.Frame {
	bars := make([]model.Bar, len(fast))
	f := indicator.Frame{Kind: model.IndicatorDKX}
	for i := range fast {
		bars[i] = model.Bar{TS: day(i), Open: 10, High: 11, Low: 9, Close: 10 + float64(i)}
		f.Fast = append(f.Fast, val(fast[i]))
		f.Slow = append(f.Slow, val(slow[i]))
	}
	f.Series = model.BarSeries{Symbol: "TEST", Period: model.PeriodDaily, Bars: bars}
	return f
}

func val(x float64) indicator.Value {
	if math.IsNaN(x) {
		return indicator.Undefined
	}
	return indicator.Some(x)
}

func TestCross(t *testing.T) {
	tests := []struct {
		name                         string
		prevFast, prevSlow, fast, sl float64
		want                         model.Direction
		ok                           bool
	}{
		{"golden", 1, 2, 3, 2, model.DirectionBuy, true},
		{"dead", 3, 2, 1, 2, model.DirectionSell, true},
		{"prev equal", 2, 2, 3, 2, "", false},
		{"curr equal", 1, 2, 2, 2, "", false},
		{"no change above", 3, 2, 4, 2, "", false},
		{"undefined prev", nan, 2, 3, 2, "", false},
		{"undefined curr", 1, 2, 3, nan, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, ok := Cross(val(tt.prevFast), val(tt.prevSlow), val(tt.fast), val(tt.sl))
			if ok != tt.ok || dir != tt.want {
				t.Errorf("Cross = %q,%v; want %q,%v", dir, ok, tt.want, tt.ok)
			}
		})
	}
}

// crossAt returns columns of length n with a single golden cross at row k.
func crossAt(n, k int) ([]float64, []float64) {
	fast := make([]float64, n)
	slow := make([]float64, n)
	for i := range fast {
		slow[i] = 10
		if i < k {
			fast[i] = 9
		} else {
			fast[i] = 11
		}
	}
	return fast, slow
}

func TestDetect_Lookback_OffsetBoundary(t *testing.T) {
	const n = 30
	d := NewDetector()
	for _, k := range []int{1, 10, 25, 29} {
		f := makeFrame(crossAt(n, k))
		offset := n - 1 - k
		for _, l := range []int{0, 1, 2, 4, 5, 6, 19, 28, 29, 40} {
			sigs := d.Detect(f, Lookback(l))
			want := l == 0 || offset < l
			if got := len(sigs) == 1; got != want {
				t.Errorf("k=%d L=%d: found=%v, want %v (%d signals)", k, l, got, want, len(sigs))
				continue
			}
			if want && sigs[0].Offset != offset {
				t.Errorf("k=%d L=%d: offset=%d, want %d", k, l, sigs[0].Offset, offset)
			}
		}
	}
}

func TestDetect_NegativeLookback(t *testing.T) {
	f := makeFrame(crossAt(20, 17)) // offset 2
	d := NewDetector()
	if got := len(d.Detect(f, Lookback(-3))); got != 1 {
		t.Errorf("Lookback(-3) found %d, want 1", got)
	}
	if got := len(d.Detect(f, Lookback(-2))); got != 0 {
		t.Errorf("Lookback(-2) found %d, want 0", got)
	}
}

func TestDetect_SignalFields(t *testing.T) {
	fast := []float64{nan, 9, 11, 12, 8}
	slow := []float64{nan, 10, 10, 10, 10}
	f := makeFrame(fast, slow)

	sigs := NewDetector().Detect(f, Lookback(0))
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(sigs))
	}
	buy, sell := sigs[0], sigs[1]
	if buy.Direction != model.DirectionBuy || !buy.TS.Equal(day(2)) || buy.Offset != 2 || buy.Price != 12 {
		t.Errorf("buy = %+v", buy)
	}
	if buy.Values.DKX == nil || buy.Values.DKX.DKX != 11 || buy.Values.DKX.MADKX != 10 {
		t.Errorf("buy values = %+v", buy.Values)
	}
	if sell.Direction != model.DirectionSell || sell.Offset != 0 {
		t.Errorf("sell = %+v", sell)
	}
}

func TestDetect_TooFewBars(t *testing.T) {
	d := NewDetector()
	if sigs := d.Detect(makeFrame([]float64{1}, []float64{2}), Lookback(0)); len(sigs) != 0 {
		t.Errorf("single bar produced %d signals", len(sigs))
	}
	f := makeFrame(crossAt(10, 5))
	unannotated := indicator.Frame{Kind: f.Kind, Series: f.Series}
	if sigs := d.Detect(unannotated, Lookback(0)); sigs == nil || len(sigs) != 0 {
		t.Errorf("unannotated frame must give an empty, non-nil list, got %v", sigs)
	}
}

func TestDetect_TimeRange(t *testing.T) {
	f := makeFrame(crossAt(20, 10)) // cross on day 10
	d := NewDetector()

	// Range starting exactly at the cross bar: the preceding bar is added.
	sigs := d.Detect(f, Between(day(10), day(15)))
	if len(sigs) != 1 || !sigs[0].TS.Equal(day(10)) || sigs[0].Offset != 9 {
		t.Fatalf("range [10,15] = %+v", sigs)
	}

	if sigs := d.Detect(f, Between(day(11), day(15))); len(sigs) != 0 {
		t.Errorf("range after cross found %d", len(sigs))
	}
	if sigs := d.Detect(f, Between(day(0), day(9))); len(sigs) != 0 {
		t.Errorf("range before cross found %d", len(sigs))
	}
	if sigs := d.Detect(f, Between(day(12), day(3))); len(sigs) != 0 {
		t.Errorf("inverted range found %d", len(sigs))
	}
	if sigs := d.Detect(f, Between(day(100), day(120))); len(sigs) != 0 {
		t.Errorf("range past the data found %d", len(sigs))
	}
	// Open-ended start
	if sigs := d.Detect(f, Between(time.Time{}, day(10))); len(sigs) != 1 {
		t.Errorf("open start found %d", len(sigs))
	}
}

func TestDetect_TimeRangeNormalizesZone(t *testing.T) {
	f := makeFrame(crossAt(20, 10))
	// The same instants expressed in UTC.
	sigs := NewDetector().Detect(f, Between(day(10).UTC(), day(10).UTC()))
	if len(sigs) != 1 {
		t.Fatalf("UTC bounds found %d signals, want 1", len(sigs))
	}
}
