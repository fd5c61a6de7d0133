// Package indicator provides technical indicator calculations over bar data.
//
// Single-series indicators implement the Indicator interface, receiving
// float64 inputs and producing float64 values. Crossover pairs (DKX/MADKX,
// dual MA) implement PairCalculator and are composed from them.
package indicator

import (
	"encoding/json"
	"math"

	"signal-monitor/internal/model"
)

// Indicator is the interface for all single-series indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "WMA").
	Name() string

	// Update feeds a new input value and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// PairCalculator produces a fast/slow line pair bar by bar.
type PairCalculator interface {
	// Kind returns the indicator family.
	Kind() model.IndicatorKind

	// Update feeds the next bar and returns the pair at that bar.
	Update(b model.Bar) (fast, slow Value)

	// MinBars is the series length below which the pair is not computed.
	MinBars() int
}

// Value is an indicator reading that may be undefined (warm-up period).
type Value struct {
	Float float64
	Valid bool
}

// Undefined is the reading of a bar inside the warm-up window.
var Undefined = Value{}

// Some wraps a defined reading.
func Some(v float64) Value { return Value{Float: v, Valid: true} }

// Defined reports whether the value is set and finite.
func (v Value) Defined() bool {
	return v.Valid && !math.IsNaN(v.Float) && !math.IsInf(v.Float, 0)
}

// MarshalJSON encodes undefined or non-finite values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON decodes null as Undefined.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Mid is the DKX blended price: (3*close + low + open + high) / 6.
func Mid(b model.Bar) float64 {
	return (3*b.Close + b.Low + b.Open + b.High) / 6
}
