package model

import "time"

// Side is the net position state of a single-instrument run.
type Side string

const (
	SideFlat  Side = "FLAT"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Dir returns 1 for long, -1 for short and 0 for flat.
func (s Side) Dir() int {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	}
	return 0
}

// PositionState is the simulator's open position.
type PositionState struct {
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
}

// TradeDirection is the action recorded by a trade.
type TradeDirection string

const (
	OpenLong   TradeDirection = "OPEN_LONG"
	OpenShort  TradeDirection = "OPEN_SHORT"
	CloseLong  TradeDirection = "CLOSE_LONG"
	CloseShort TradeDirection = "CLOSE_SHORT"
)

// IsClose reports whether the trade closes a position.
func (d TradeDirection) IsClose() bool { return d == CloseLong || d == CloseShort }

// IsBuy reports whether the trade is executed on the buy side.
func (d TradeDirection) IsBuy() bool { return d == OpenLong || d == CloseShort }

// Trade is one fill in a backtest run. Quantity is the lot count; P&L and
// commission are computed on lots x multiplier.
type Trade struct {
	SequenceID       int            `json:"sequence_id"`
	Time             time.Time      `json:"time"`
	Symbol           string         `json:"symbol"`
	Direction        TradeDirection `json:"direction"`
	NominalPrice     float64        `json:"nominal_price"`
	ExecutedPrice    float64        `json:"executed_price"`
	Slippage         float64        `json:"slippage"`
	Quantity         int            `json:"quantity"`
	Commission       float64        `json:"commission"`
	Profit           float64        `json:"profit"`
	CumulativeProfit float64        `json:"cumulative_profit"`
	MarginOccupied   float64        `json:"margin_occupied"`
	RiskDegree       float64        `json:"risk_degree"`
	PositionDir      int            `json:"position_dir"`  // position after this trade: 1, 0, -1
	Balance          float64        `json:"daily_balance"` // cash balance after this trade
}

// EquityPoint is the account equity at the close of one bar.
type EquityPoint struct {
	TS     time.Time `json:"timestamp"`
	Equity float64   `json:"equity"`
}

// Statistics summarizes a backtest run. Every field is finite.
type Statistics struct {
	TotalTrades          int     `json:"total_trades"`
	WinRate              float64 `json:"win_rate"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	TotalProfit          float64 `json:"total_profit"`
	FinalEquity          float64 `json:"final_equity"`
	RealizedProfit       float64 `json:"realized_profit"`
	FloatingProfit       float64 `json:"floating_profit"`
	AvgProfit            float64 `json:"avg_profit"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	ProfitFactor         float64 `json:"profit_factor"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	ReturnOnMargin       float64 `json:"return_on_margin"`
	MaxMarginUsed        float64 `json:"max_margin_used"`
	AvgSlippage          float64 `json:"avg_slippage"`
	MaxSlippage          float64 `json:"max_slippage"`
	StrategyCapacity     float64 `json:"strategy_capacity"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
}
