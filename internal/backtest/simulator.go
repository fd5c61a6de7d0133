// Package backtest replays bar series through a crossover strategy into
// trades, an equity curve and summary statistics.
package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"signal-monitor/internal/execution"
	"signal-monitor/internal/model"
	"signal-monitor/internal/portfolio"
	"signal-monitor/internal/strategy"
)

// Params configures one symbol run.
type Params struct {
	InitialCapital float64
	LotSize        int
	Multiplier     float64
	CommissionRate float64
	MarginRate     float64
	Slippage       float64 // price units per fill
}

// ParamsFor derives run parameters from a contract. Slippage is ticks x
// the contract's minimum price increment.
func ParamsFor(c model.ContractInfo, capital float64, lots int, commissionRate float64, slippageTicks int) Params {
	c = c.Normalized()
	return Params{
		InitialCapital: capital,
		LotSize:        lots,
		Multiplier:     c.Multiplier,
		CommissionRate: commissionRate,
		MarginRate:     c.MarginRate,
		Slippage:       float64(slippageTicks) * c.MinTick,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	switch {
	case p.InitialCapital <= 0:
		return fmt.Errorf("backtest: initial capital must be positive, got %v", p.InitialCapital)
	case p.LotSize <= 0:
		return fmt.Errorf("backtest: lot size must be positive, got %d", p.LotSize)
	case p.Multiplier <= 0:
		return fmt.Errorf("backtest: multiplier must be positive, got %v", p.Multiplier)
	case p.CommissionRate < 0 || p.MarginRate < 0 || p.Slippage < 0:
		return fmt.Errorf("backtest: commission, margin and slippage must not be negative")
	}
	return nil
}

// Report is the outcome of one simulated symbol.
type Report struct {
	Symbol string
	Trades []model.Trade
	Equity []model.EquityPoint
	Stats  model.Statistics
	Final  model.PositionState
}

// Simulator runs the FLAT/LONG/SHORT state machine over one series.
// A Simulator is single-use and not safe for concurrent use.
type Simulator struct {
	params Params
	strat  strategy.Strategy

	exec   *execution.PaperExecutor
	pos    *portfolio.Position
	ledger *portfolio.Ledger
	margin *portfolio.MarginTracker
	qty    decimal.Decimal

	symbol string
	trades []model.Trade
	equity []model.EquityPoint
}

// NewSimulator creates a simulator that follows strat's signals.
func NewSimulator(p Params, strat strategy.Strategy) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fm := execution.NewFillModel(p.Slippage, p.CommissionRate, p.LotSize, p.Multiplier)
	return &Simulator{
		params: p,
		strat:  strat,
		exec:   execution.NewPaperExecutor(fm),
		pos:    portfolio.NewPosition(),
		ledger: portfolio.NewLedger(p.InitialCapital),
		qty:    fm.Quantity,
	}, nil
}

// Run replays s bar by bar. Every bar produces one equity point; bars
// where the strategy is still warming up only mark the open position.
func (sim *Simulator) Run(s model.BarSeries) (Report, error) {
	if sim.margin != nil {
		return Report{}, fmt.Errorf("backtest: simulator already used")
	}
	sim.symbol = s.Symbol
	sim.margin = portfolio.NewMarginTracker(s.Symbol, sim.params.MarginRate)
	sim.trades = make([]model.Trade, 0, 16)
	sim.equity = make([]model.EquityPoint, 0, s.Len())

	for _, bar := range s.Bars {
		if sig := sim.strat.OnBar(bar); sig != nil {
			if err := sim.onSignal(*sig, bar); err != nil {
				return Report{}, err
			}
		}
		px := decimal.NewFromFloat(bar.Close)
		eq, _ := sim.ledger.Equity(sim.pos.Floating(px, sim.qty)).Float64()
		sim.equity = append(sim.equity, model.EquityPoint{TS: bar.TS, Equity: eq})
	}

	maxMargin, _ := sim.margin.MaxUsed().Float64()
	realized, _ := sim.ledger.Realized().Float64()
	stats := Compute(StatsInput{
		InitialCapital: sim.params.InitialCapital,
		Trades:         sim.trades,
		Equity:         sim.equity,
		Realized:       realized,
		MaxMarginUsed:  maxMargin,
		Bars:           s.Bars,
		Multiplier:     sim.params.Multiplier,
		Slippage:       sim.params.Slippage,
	})
	return Report{
		Symbol: s.Symbol,
		Trades: sim.trades,
		Equity: sim.equity,
		Stats:  stats,
		Final:  sim.pos.State(),
	}, nil
}

func (sim *Simulator) onSignal(sig model.Signal, bar model.Bar) error {
	target := model.SideLong
	if sig.Direction == model.DirectionSell {
		target = model.SideShort
	}
	if sim.pos.Side() == target {
		return nil
	}
	if !sim.pos.Flat() {
		if err := sim.close(bar); err != nil {
			return err
		}
	}
	return sim.open(target, bar)
}

func (sim *Simulator) open(side model.Side, bar model.Bar) error {
	fill := sim.exec.Execute(portfolio.OpenDirection(side), bar.Close, bar.TS)
	if err := sim.pos.Open(side, fill.Price, bar.TS); err != nil {
		return err
	}
	profit := fill.Commission.Neg()
	cash := sim.ledger.Post(profit)
	margin := sim.margin.Observe(sim.margin.Margin(fill.Price, sim.qty))

	t := sim.record(fill, profit, cash)
	t.MarginOccupied, _ = margin.Float64()
	t.RiskDegree = portfolio.RiskDegree(margin, cash)
	sim.trades = append(sim.trades, t)
	return nil
}

func (sim *Simulator) close(bar model.Bar) error {
	fill := sim.exec.Execute(portfolio.CloseDirection(sim.pos.Side()), bar.Close, bar.TS)
	gross, err := sim.pos.Close(fill.Price, sim.qty)
	if err != nil {
		return err
	}
	profit := gross.Sub(fill.Commission)
	cash := sim.ledger.Post(profit)
	sim.trades = append(sim.trades, sim.record(fill, profit, cash))
	return nil
}

func (sim *Simulator) record(fill execution.Fill, profit, cash decimal.Decimal) model.Trade {
	t := model.Trade{
		SequenceID:  fill.SequenceID,
		Time:        fill.Time,
		Symbol:      sim.symbol,
		Direction:   fill.Direction,
		Quantity:    sim.params.LotSize,
		PositionDir: sim.pos.Side().Dir(),
	}
	t.NominalPrice, _ = fill.Nominal.Float64()
	t.ExecutedPrice, _ = fill.Price.Float64()
	t.Slippage, _ = fill.Slippage.Float64()
	t.Commission, _ = fill.Commission.Float64()
	t.Profit, _ = profit.Float64()
	t.CumulativeProfit, _ = sim.ledger.CumulativeProfit().Float64()
	t.Balance, _ = cash.Float64()
	return t
}
