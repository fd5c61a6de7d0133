package indicator

// WMA calculates a linearly weighted moving average: within the window the
// oldest value has weight 1 and the newest weight period, normalized by
// period*(period+1)/2. The dot product is recomputed on every update.
type WMA struct {
	period  int
	buf     []float64 // circular buffer, idx is the oldest slot once full
	idx     int
	count   int
	denom   float64
	current float64
}

// NewWMA creates a new linear WMA with the given period.
func NewWMA(period int) *WMA {
	if period < 1 {
		period = 1
	}
	return &WMA{
		period: period,
		buf:    make([]float64, period),
		denom:  float64(period*(period+1)) / 2,
	}
}

func (w *WMA) Name() string { return "WMA" }

func (w *WMA) Update(v float64) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % w.period
	w.count++
	if w.count >= w.period {
		w.current = w.dot()
	}
}

func (w *WMA) Value() float64 { return w.current }
func (w *WMA) Ready() bool    { return w.count >= w.period }

// dot walks the full window oldest to newest, weighting by position.
func (w *WMA) dot() float64 {
	var sum float64
	for k := 0; k < w.period; k++ {
		sum += w.buf[(w.idx+k)%w.period] * float64(k+1)
	}
	return sum / w.denom
}
