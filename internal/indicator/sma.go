package indicator

// resumEvery bounds rounding drift in the rolling sum: after this many window
// lengths the sum is rebuilt from the buffer.
const resumEvery = 64

// SMA is the arithmetic mean of the last period inputs, kept as a rolling sum
// over a circular buffer.
type SMA struct {
	period  int
	buf     []float64 // idx is the oldest slot once full
	idx     int
	count   int
	sum     float64
	current float64
}

// NewSMA creates an SMA over period inputs; periods below 1 are treated as 1.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{period: period, buf: make([]float64, period)}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		s.sum -= s.buf[s.idx]
	}
	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count%(s.period*resumEvery) == 0 {
		s.sum = 0
		for _, x := range s.buf {
			s.sum += x
		}
	}
	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }
