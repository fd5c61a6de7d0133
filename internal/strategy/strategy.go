// Package strategy turns indicator pairs into crossover signals.
//
// A Strategy receives bars one at a time and emits BUY/SELL signals. The
// Detector scans a precomputed indicator frame over a lookback window or a
// time range.
package strategy

import (
	"signal-monitor/internal/indicator"
	"signal-monitor/internal/model"
)

// Strategy is the interface that bar-driven strategies implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnBar is called for each new bar in chronological order.
	// Return a Signal if the strategy wants to act, or nil to skip.
	OnBar(b model.Bar) *model.Signal
}

// Cross tests for a crossover between two consecutive rows. Equality never
// triggers and an undefined reading on either row yields no signal.
func Cross(prevFast, prevSlow, fast, slow indicator.Value) (model.Direction, bool) {
	if !prevFast.Defined() || !prevSlow.Defined() || !fast.Defined() || !slow.Defined() {
		return "", false
	}
	switch {
	// Golden cross: fast crosses above slow
	case prevFast.Float < prevSlow.Float && fast.Float > slow.Float:
		return model.DirectionBuy, true
	// Dead cross: fast crosses below slow
	case prevFast.Float > prevSlow.Float && fast.Float < slow.Float:
		return model.DirectionSell, true
	}
	return "", false
}

// Crossover streams bars through a pair calculator and signals when the
// fast line crosses the slow line.
type Crossover struct {
	name     string
	calc     indicator.PairCalculator
	prevFast indicator.Value
	prevSlow indicator.Value
	count    int
}

// NewCrossover creates a crossover strategy for the given indicator pair.
func NewCrossover(cfg indicator.Config) (*Crossover, error) {
	calc, err := indicator.NewCalculator(cfg)
	if err != nil {
		return nil, err
	}
	return &Crossover{name: string(calc.Kind()) + "_Crossover", calc: calc}, nil
}

func (c *Crossover) Name() string { return c.name }

func (c *Crossover) OnBar(b model.Bar) *model.Signal {
	fast, slow := c.calc.Update(b)
	defer func() {
		c.prevFast, c.prevSlow = fast, slow
		c.count++
	}()

	if c.count == 0 {
		return nil
	}
	dir, ok := Cross(c.prevFast, c.prevSlow, fast, slow)
	if !ok {
		return nil
	}
	return &model.Signal{
		TS:        b.TS,
		Direction: dir,
		Price:     b.Close,
		Values:    model.NewIndicatorValues(c.calc.Kind(), fast.Float, slow.Float),
	}
}
