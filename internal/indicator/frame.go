package indicator

import (
	"encoding/json"
	"time"

	"signal-monitor/internal/model"
)

// Frame is a bar series annotated with a fast/slow indicator pair,
// aligned index by index. Fast and Slow are nil when the series was too
// short to compute.
type Frame struct {
	Kind   model.IndicatorKind
	Series model.BarSeries
	Fast   []Value
	Slow   []Value
}

// Len returns the number of rows.
func (f Frame) Len() int { return f.Series.Len() }

// Annotated reports whether indicator columns are present.
func (f Frame) Annotated() bool { return f.Fast != nil && len(f.Fast) == f.Series.Len() }

// Defined reports whether both lines are defined at row i.
func (f Frame) Defined(i int) bool {
	return f.Annotated() && f.Fast[i].Defined() && f.Slow[i].Defined()
}

// ValuesAt returns the readings at row i as a tagged variant.
func (f Frame) ValuesAt(i int) model.IndicatorValues {
	var fast, slow float64
	if f.Annotated() {
		fast, slow = f.Fast[i].Float, f.Slow[i].Float
	}
	return model.NewIndicatorValues(f.Kind, fast, slow)
}

// Index returns the row whose timestamp equals ts, or -1.
func (f Frame) Index(ts time.Time) int {
	for i := range f.Series.Bars {
		if f.Series.Bars[i].TS.Equal(ts) {
			return i
		}
	}
	return -1
}

// ChartRow is one frame row in chart form. Indicator keys depend on Kind.
type ChartRow struct {
	Kind model.IndicatorKind
	Bar  model.Bar
	Fast Value
	Slow Value
}

type chartBar struct {
	TS           time.Time `json:"timestamp"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	OpenInterest *float64  `json:"open_interest,omitempty"`
}

// MarshalJSON emits the bar fields plus dkx/madkx or ma_short/ma_long.
func (r ChartRow) MarshalJSON() ([]byte, error) {
	base := chartBar{
		TS:           r.Bar.TS,
		Open:         r.Bar.Open,
		High:         r.Bar.High,
		Low:          r.Bar.Low,
		Close:        r.Bar.Close,
		Volume:       r.Bar.Volume,
		OpenInterest: r.Bar.OpenInterest,
	}
	if r.Kind == model.IndicatorMA {
		return json.Marshal(struct {
			chartBar
			Short Value `json:"ma_short"`
			Long  Value `json:"ma_long"`
		}{base, r.Fast, r.Slow})
	}
	return json.Marshal(struct {
		chartBar
		DKX   Value `json:"dkx"`
		MADKX Value `json:"madkx"`
	}{base, r.Fast, r.Slow})
}

// Rows returns every row in chart form.
func (f Frame) Rows() []ChartRow {
	return f.Window(0)
}

// Window returns the last n rows in chart form; n <= 0 returns all rows.
func (f Frame) Window(n int) []ChartRow {
	total := f.Len()
	start := 0
	if n > 0 && n < total {
		start = total - n
	}
	rows := make([]ChartRow, 0, total-start)
	for i := start; i < total; i++ {
		row := ChartRow{Kind: f.Kind, Bar: f.Series.Bars[i]}
		if f.Annotated() {
			row.Fast, row.Slow = f.Fast[i], f.Slow[i]
		}
		rows = append(rows, row)
	}
	return rows
}
