package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Direction is the side of a crossover signal.
type Direction string

const (
	DirectionBuy  Direction = "BUY"  // golden cross: fast crosses above slow
	DirectionSell Direction = "SELL" // dead cross: fast crosses below slow
)

// IndicatorKind names an indicator family that produces a fast/slow pair.
type IndicatorKind string

const (
	IndicatorDKX IndicatorKind = "DKX"
	IndicatorMA  IndicatorKind = "MA"
)

// DKXValues holds the DKX pair at one bar.
type DKXValues struct {
	DKX   float64 `json:"dkx"`
	MADKX float64 `json:"madkx"`
}

// MAValues holds the dual moving average pair at one bar.
type MAValues struct {
	Short float64 `json:"ma_short"`
	Long  float64 `json:"ma_long"`
}

// IndicatorValues carries the indicator readings for exactly one family.
// Only the field matching Kind is set.
type IndicatorValues struct {
	Kind IndicatorKind
	DKX  *DKXValues
	MA   *MAValues
}

// NewIndicatorValues builds the variant for kind from a fast/slow pair.
func NewIndicatorValues(kind IndicatorKind, fast, slow float64) IndicatorValues {
	switch kind {
	case IndicatorMA:
		return IndicatorValues{Kind: kind, MA: &MAValues{Short: fast, Long: slow}}
	default:
		return IndicatorValues{Kind: IndicatorDKX, DKX: &DKXValues{DKX: fast, MADKX: slow}}
	}
}

// Pair returns the (fast, slow) readings regardless of family.
func (v IndicatorValues) Pair() (fast, slow float64) {
	switch {
	case v.DKX != nil:
		return v.DKX.DKX, v.DKX.MADKX
	case v.MA != nil:
		return v.MA.Short, v.MA.Long
	}
	return 0, 0
}

// MarshalJSON flattens the variant into {"indicator": kind, <family fields>}.
func (v IndicatorValues) MarshalJSON() ([]byte, error) {
	switch {
	case v.DKX != nil:
		return json.Marshal(struct {
			Indicator IndicatorKind `json:"indicator"`
			DKXValues
		}{v.Kind, *v.DKX})
	case v.MA != nil:
		return json.Marshal(struct {
			Indicator IndicatorKind `json:"indicator"`
			MAValues
		}{v.Kind, *v.MA})
	}
	return json.Marshal(struct {
		Indicator IndicatorKind `json:"indicator"`
	}{v.Kind})
}

// UnmarshalJSON restores the variant selected by the "indicator" field.
func (v *IndicatorValues) UnmarshalJSON(data []byte) error {
	var head struct {
		Indicator IndicatorKind `json:"indicator"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*v = IndicatorValues{Kind: head.Indicator}
	switch head.Indicator {
	case IndicatorDKX:
		v.DKX = &DKXValues{}
		return json.Unmarshal(data, v.DKX)
	case IndicatorMA:
		v.MA = &MAValues{}
		return json.Unmarshal(data, v.MA)
	case "":
		return nil
	}
	return fmt.Errorf("unknown indicator kind %q", head.Indicator)
}

// Signal is one crossover event found in an indicator frame.
type Signal struct {
	TS        time.Time       `json:"timestamp"`
	Direction Direction       `json:"direction"`
	Price     float64         `json:"price"` // close of the signal bar
	Values    IndicatorValues `json:"values"`
	Offset    int             `json:"offset"` // bars between this signal and the frame's last bar
}

// SignalRecord is a persisted detection result.
type SignalRecord struct {
	ID         int64           `json:"id,omitempty"`
	Symbol     string          `json:"symbol"`
	Market     Market          `json:"market"`
	SignalDate string          `json:"signal_date"`
	Direction  Direction       `json:"signal_type"`
	Price      float64         `json:"price"`
	Indicator  IndicatorKind   `json:"indicator_type"`
	Values     IndicatorValues `json:"indicator_values"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SignalDateLayout is the layout used for SignalRecord.SignalDate.
const SignalDateLayout = "2006-01-02 15:04"

// NewSignalRecord converts a detected signal into its persisted form.
func NewSignalRecord(symbol string, market Market, sig Signal) SignalRecord {
	return SignalRecord{
		Symbol:     symbol,
		Market:     market,
		SignalDate: sig.TS.Format(SignalDateLayout),
		Direction:  sig.Direction,
		Price:      sig.Price,
		Indicator:  sig.Values.Kind,
		Values:     sig.Values,
	}
}
