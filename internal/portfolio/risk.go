package portfolio

import (
	"log"

	"github.com/shopspring/decimal"
)

// MarginTracker computes margin occupied by the open position and keeps
// the peak over a run.
type MarginTracker struct {
	rate    decimal.Decimal
	maxUsed decimal.Decimal
	symbol  string
}

// NewMarginTracker creates a tracker for the given margin rate.
func NewMarginTracker(symbol string, marginRate float64) *MarginTracker {
	return &MarginTracker{symbol: symbol, rate: decimal.NewFromFloat(marginRate)}
}

// Margin returns entry x qty x rate.
func (m *MarginTracker) Margin(entry, qty decimal.Decimal) decimal.Decimal {
	return entry.Mul(qty).Mul(m.rate)
}

// Observe records margin in use and returns it.
func (m *MarginTracker) Observe(margin decimal.Decimal) decimal.Decimal {
	if margin.GreaterThan(m.maxUsed) {
		m.maxUsed = margin
	}
	return margin
}

// MaxUsed returns the largest margin observed.
func (m *MarginTracker) MaxUsed() decimal.Decimal { return m.maxUsed }

// RiskDegree returns margin / balance, or 0 when the balance is not positive.
func RiskDegree(margin, balance decimal.Decimal) float64 {
	if !balance.IsPositive() {
		return 0
	}
	r, _ := margin.Div(balance).Float64()
	if r > 1 {
		log.Printf("[risk] margin %s exceeds balance %s", margin.StringFixed(2), balance.StringFixed(2))
	}
	return r
}
