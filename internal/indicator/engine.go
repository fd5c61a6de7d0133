package indicator

import (
	"fmt"

	"signal-monitor/internal/model"
)

// Default dual MA windows.
const (
	DefaultShortPeriod = 5
	DefaultLongPeriod  = 10
)

// Config specifies the indicator pair to compute.
type Config struct {
	Kind  model.IndicatorKind
	Short int // MA only
	Long  int // MA only
}

// DKXConfig is the configuration for the DKX/MADKX pair.
func DKXConfig() Config { return Config{Kind: model.IndicatorDKX} }

// MAConfig is the configuration for a dual MA pair.
func MAConfig(short, long int) Config {
	return Config{Kind: model.IndicatorMA, Short: short, Long: long}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Kind {
	case model.IndicatorDKX:
		return nil
	case model.IndicatorMA:
		if c.Short <= 0 || c.Long <= 0 {
			return fmt.Errorf("indicator: MA periods must be positive, got short=%d long=%d", c.Short, c.Long)
		}
		return nil
	}
	return fmt.Errorf("indicator: unknown kind %q", c.Kind)
}

// NewCalculator creates a fresh pair calculator for cfg.
func NewCalculator(cfg Config) (PairCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case model.IndicatorMA:
		return NewDualMA(cfg.Short, cfg.Long), nil
	default:
		return NewDKX(), nil
	}
}

// Compute runs the configured pair over s and returns the annotated frame.
// A series shorter than the calculator's minimum comes back unannotated
// together with ErrNotEnoughData.
func Compute(s model.BarSeries, cfg Config) (Frame, error) {
	calc, err := NewCalculator(cfg)
	if err != nil {
		return Frame{}, err
	}
	frame := Frame{Kind: calc.Kind(), Series: s}
	if s.Len() < calc.MinBars() {
		return frame, fmt.Errorf("%w: %s has %d bars, %s needs %d",
			model.ErrNotEnoughData, s.Symbol, s.Len(), calc.Kind(), calc.MinBars())
	}

	frame.Fast = make([]Value, s.Len())
	frame.Slow = make([]Value, s.Len())
	for i := range s.Bars {
		frame.Fast[i], frame.Slow[i] = calc.Update(s.Bars[i])
	}
	return frame, nil
}

// ComputeDKX annotates s with DKX/MADKX.
func ComputeDKX(s model.BarSeries) (Frame, error) {
	return Compute(s, DKXConfig())
}

// ComputeMA annotates s with a short/long SMA pair.
func ComputeMA(s model.BarSeries, short, long int) (Frame, error) {
	return Compute(s, MAConfig(short, long))
}
