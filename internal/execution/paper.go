// Package execution simulates order fills for backtests and journals the
// resulting runs to SQLite.
package execution

import (
	"time"

	"github.com/shopspring/decimal"

	"signal-monitor/internal/model"
)

// FillModel prices a simulated market order: the nominal price (bar close)
// moves against the trader by Slippage, and commission is charged on the
// fill notional.
type FillModel struct {
	Slippage       decimal.Decimal // price units, normally one minimum tick
	CommissionRate decimal.Decimal // fraction of fill notional
	Quantity       decimal.Decimal // lots x contract multiplier
}

// NewFillModel builds a fill model for lots x multiplier units per order.
func NewFillModel(slippage, commissionRate float64, lots int, multiplier float64) FillModel {
	return FillModel{
		Slippage:       decimal.NewFromFloat(slippage),
		CommissionRate: decimal.NewFromFloat(commissionRate),
		Quantity:       decimal.NewFromInt(int64(lots)).Mul(decimal.NewFromFloat(multiplier)),
	}
}

// Fill represents a simulated order fill.
type Fill struct {
	SequenceID int
	Direction  model.TradeDirection
	Time       time.Time
	Nominal    decimal.Decimal
	Price      decimal.Decimal // executed price
	Slippage   decimal.Decimal
	Commission decimal.Decimal
}

// Price returns the executed price for a trade in direction dir.
// Buys fill higher, sells lower.
func (m FillModel) Price(dir model.TradeDirection, nominal decimal.Decimal) decimal.Decimal {
	if dir.IsBuy() {
		return nominal.Add(m.Slippage)
	}
	return nominal.Sub(m.Slippage)
}

// Commission returns fill x quantity x rate.
func (m FillModel) Commission(price decimal.Decimal) decimal.Decimal {
	return price.Mul(m.Quantity).Mul(m.CommissionRate)
}

// PaperExecutor simulates order execution without real broker calls.
// Designed for single-goroutine usage, one executor per run.
type PaperExecutor struct {
	model    FillModel
	orderSeq int
}

// NewPaperExecutor creates a paper executor using m to price fills.
func NewPaperExecutor(m FillModel) *PaperExecutor {
	return &PaperExecutor{model: m}
}

// Execute fills an order at the bar close price.
func (p *PaperExecutor) Execute(dir model.TradeDirection, closePrice float64, ts time.Time) Fill {
	p.orderSeq++
	nominal := decimal.NewFromFloat(closePrice)
	price := p.model.Price(dir, nominal)

	fill := Fill{
		SequenceID: p.orderSeq,
		Direction:  dir,
		Time:       ts,
		Nominal:    nominal,
		Price:      price,
		Slippage:   p.model.Slippage,
		Commission: p.model.Commission(price),
	}
	return fill
}
