package portfolio

import "github.com/shopspring/decimal"

// Ledger is the realized cash balance of a run. Every trade's net profit
// (gross P&L minus commission, or minus commission alone for an open) is
// posted to it.
type Ledger struct {
	initial  decimal.Decimal
	cash     decimal.Decimal
	realized decimal.Decimal
}

// NewLedger creates a ledger holding initial capital.
func NewLedger(initial float64) *Ledger {
	d := decimal.NewFromFloat(initial)
	return &Ledger{initial: d, cash: d}
}

// Post books a trade's net profit and returns the new balance.
func (l *Ledger) Post(profit decimal.Decimal) decimal.Decimal {
	l.cash = l.cash.Add(profit)
	l.realized = l.realized.Add(profit)
	return l.cash
}

// Realized returns the sum of all posted profits.
func (l *Ledger) Realized() decimal.Decimal { return l.realized }

// CumulativeProfit returns cash minus initial capital.
func (l *Ledger) CumulativeProfit() decimal.Decimal { return l.cash.Sub(l.initial) }

// Equity returns cash plus the floating P&L of the open position.
func (l *Ledger) Equity(floating decimal.Decimal) decimal.Decimal { return l.cash.Add(floating) }
