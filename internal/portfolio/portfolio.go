// Package portfolio tracks the single net position of a backtest run, its
// cash ledger and margin usage.
//
// Amounts are accumulated as decimals so commission and P&L sums do not
// drift over long runs; callers read float64 views for reporting.
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signal-monitor/internal/model"
)

// Position is the net position state machine: FLAT, LONG or SHORT.
type Position struct {
	side  model.Side
	entry decimal.Decimal
	at    time.Time
}

// NewPosition creates a flat position.
func NewPosition() *Position {
	return &Position{side: model.SideFlat}
}

// Side returns the current side.
func (p *Position) Side() model.Side { return p.side }

// Flat reports whether no position is open.
func (p *Position) Flat() bool { return p.side == model.SideFlat }

// State returns a snapshot of the position.
func (p *Position) State() model.PositionState {
	entry, _ := p.entry.Float64()
	return model.PositionState{Side: p.side, EntryPrice: entry, EntryTime: p.at}
}

// Open enters side at price. The position must be flat.
func (p *Position) Open(side model.Side, price decimal.Decimal, at time.Time) error {
	if !p.Flat() {
		return fmt.Errorf("portfolio: open %s while %s", side, p.side)
	}
	if side == model.SideFlat {
		return fmt.Errorf("portfolio: cannot open a flat position")
	}
	p.side, p.entry, p.at = side, price, at
	return nil
}

// Close exits the open position at price and returns its gross P&L over
// qty units: (exit - entry) x qty for longs, (entry - exit) x qty for shorts.
func (p *Position) Close(price, qty decimal.Decimal) (decimal.Decimal, error) {
	if p.Flat() {
		return decimal.Zero, fmt.Errorf("portfolio: close while flat")
	}
	gross := p.pnl(price, qty)
	p.side, p.entry, p.at = model.SideFlat, decimal.Zero, time.Time{}
	return gross, nil
}

// Floating returns the mark-to-market P&L at price, 0 when flat.
func (p *Position) Floating(price, qty decimal.Decimal) decimal.Decimal {
	if p.Flat() {
		return decimal.Zero
	}
	return p.pnl(price, qty)
}

func (p *Position) pnl(price, qty decimal.Decimal) decimal.Decimal {
	if p.side == model.SideShort {
		return p.entry.Sub(price).Mul(qty)
	}
	return price.Sub(p.entry).Mul(qty)
}

// OpenDirection maps a target side to its opening trade direction.
func OpenDirection(side model.Side) model.TradeDirection {
	if side == model.SideShort {
		return model.OpenShort
	}
	return model.OpenLong
}

// CloseDirection maps a held side to its closing trade direction.
func CloseDirection(side model.Side) model.TradeDirection {
	if side == model.SideShort {
		return model.CloseShort
	}
	return model.CloseLong
}
