package indicator

import "signal-monitor/internal/model"

// DKX window sizes.
const (
	DKXPeriod   = 20
	MADKXPeriod = 10
)

// DKX streams the DKX line (20-bar linear WMA of Mid) and its signal line
// MADKX (10-bar SMA of DKX).
type DKX struct {
	wma *WMA
	ma  *SMA
}

// NewDKX creates a DKX/MADKX pair calculator.
func NewDKX() *DKX {
	return &DKX{wma: NewWMA(DKXPeriod), ma: NewSMA(MADKXPeriod)}
}

func (d *DKX) Kind() model.IndicatorKind { return model.IndicatorDKX }
func (d *DKX) MinBars() int              { return DKXPeriod }

func (d *DKX) Update(b model.Bar) (Value, Value) {
	d.wma.Update(Mid(b))
	if !d.wma.Ready() {
		return Undefined, Undefined
	}
	dkx := d.wma.Value()
	d.ma.Update(dkx)
	if !d.ma.Ready() {
		return Some(dkx), Undefined
	}
	return Some(dkx), Some(d.ma.Value())
}

// DualMA streams a short and a long SMA of close.
type DualMA struct {
	short *SMA
	long  *SMA
}

// NewDualMA creates a dual moving average calculator.
func NewDualMA(short, long int) *DualMA {
	return &DualMA{short: NewSMA(short), long: NewSMA(long)}
}

func (m *DualMA) Kind() model.IndicatorKind { return model.IndicatorMA }

// MinBars is the longer window: a shorter series never defines both lines.
func (m *DualMA) MinBars() int {
	if m.short.period > m.long.period {
		return m.short.period
	}
	return m.long.period
}

func (m *DualMA) Update(b model.Bar) (Value, Value) {
	m.short.Update(b.Close)
	m.long.Update(b.Close)
	fast, slow := Undefined, Undefined
	if m.short.Ready() {
		fast = Some(m.short.Value())
	}
	if m.long.Ready() {
		slow = Some(m.long.Value())
	}
	return fast, slow
}
