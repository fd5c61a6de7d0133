package model

import (
	"fmt"
	"strings"
)

// Market is the asset class a symbol trades in.
type Market string

const (
	MarketStock   Market = "stock"
	MarketFutures Market = "futures"
)

// ParseMarket validates s as a Market. Empty defaults to stock.
func ParseMarket(s string) (Market, error) {
	switch m := Market(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MarketStock, nil
	case MarketStock, MarketFutures:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMarket, s)
}

// SessionType classifies a contract's trading session by where its night
// session ends.
type SessionType string

const (
	SessionDayOnly       SessionType = "no_night"
	SessionNight2300     SessionType = "standard_night"
	SessionNight0100     SessionType = "late_night"
	SessionNight0230     SessionType = "late_night_0230"
	defaultVolumeScale               = 1.0
	defaultFutureMult                = 10.0
	defaultFutureTick                = 1.0
	defaultFutureMargin              = 0.10
	defaultStockMult                 = 100.0
	defaultStockTick                 = 0.01
	defaultStockMarginRate           = 1.0
)

// SessionFromNightEnd maps a night-session end time ("23:00", "01:00",
// "02:30") to a SessionType. Empty means no night session.
func SessionFromNightEnd(nightEnd string) SessionType {
	switch strings.TrimSpace(nightEnd) {
	case "":
		return SessionDayOnly
	case "01:00":
		return SessionNight0100
	case "02:30":
		return SessionNight0230
	default:
		return SessionNight2300
	}
}

// ContractInfo parametrizes simulation and session filtering for a symbol.
type ContractInfo struct {
	Symbol      string      `json:"symbol"`
	Code        string      `json:"code"` // product code, e.g. "FG" for FG205
	Name        string      `json:"name"`
	Market      Market      `json:"market"`
	Multiplier  float64     `json:"multiplier"`   // units per lot
	MinTick     float64     `json:"min_tick"`     // minimum price increment
	MarginRate  float64     `json:"margin_rate"`  // fraction of notional
	Session     SessionType `json:"session_type"` // trading session class
	VolumeScale float64     `json:"volume_scale"` // multiplier applied to volume and OI
}

// ContractCode extracts the product code from a contract symbol: the
// leading letters, upper-cased (FG205 -> FG, rb0 -> RB). Symbols without a
// leading letter are returned upper-cased.
func ContractCode(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return s
	}
	return s[:i]
}

// DefaultContract returns the parameters used when a symbol has no entry
// in the contract table.
func DefaultContract(market Market, symbol string) ContractInfo {
	if market == MarketStock {
		return ContractInfo{
			Symbol:      symbol,
			Code:        symbol,
			Name:        symbol,
			Market:      MarketStock,
			Multiplier:  defaultStockMult,
			MinTick:     defaultStockTick,
			MarginRate:  defaultStockMarginRate,
			Session:     SessionDayOnly,
			VolumeScale: defaultVolumeScale,
		}
	}
	return ContractInfo{
		Symbol:      symbol,
		Code:        ContractCode(symbol),
		Name:        symbol,
		Market:      MarketFutures,
		Multiplier:  defaultFutureMult,
		MinTick:     defaultFutureTick,
		MarginRate:  defaultFutureMargin,
		Session:     SessionDayOnly,
		VolumeScale: defaultVolumeScale,
	}
}

// Normalized fills zero fields from the market defaults.
func (c ContractInfo) Normalized() ContractInfo {
	d := DefaultContract(c.Market, c.Symbol)
	if c.Code == "" {
		c.Code = d.Code
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.MinTick <= 0 {
		c.MinTick = d.MinTick
	}
	if c.MarginRate <= 0 {
		c.MarginRate = d.MarginRate
	}
	if c.Session == "" {
		c.Session = d.Session
	}
	if c.VolumeScale <= 0 {
		c.VolumeScale = d.VolumeScale
	}
	return c
}
