package model

import (
	"context"
	"time"
)

// ── Collaborator Port Interfaces ──
// These interfaces decouple the detection and backtest pipelines from concrete
// storage implementations (SQLite, Redis, files). Each implementation
// satisfies one or more of them.

// BarQuery selects raw bars for one symbol. Zero Start/End leave that side open.
type BarQuery struct {
	Symbol string
	Market Market
	Period Period
	Start  time.Time
	End    time.Time
}

// BarSource supplies ordered bar series.
type BarSource interface {
	// FetchBars returns the bars for q ordered by timestamp.
	// Returns an empty series (not an error) when nothing matches.
	FetchBars(ctx context.Context, q BarQuery) (BarSeries, error)
}

// ContractRepository resolves per-symbol contract parameters.
type ContractRepository interface {
	// GetContract returns the contract for symbol, falling back to market
	// defaults when the symbol is unknown.
	GetContract(ctx context.Context, market Market, symbol string) (ContractInfo, error)
}

// SignalStore persists detected signals.
type SignalStore interface {
	// SaveSignal stores rec. inserted is false when an identical signal
	// (symbol, date, direction, indicator) was already stored.
	SaveSignal(ctx context.Context, rec SignalRecord) (inserted bool, err error)

	// History returns the most recent records, newest first.
	History(ctx context.Context, limit int) ([]SignalRecord, error)
}

// SignalPublisher fans out newly stored signals.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, rec SignalRecord) error
}

// SymbolInfo is one entry of a symbol search.
type SymbolInfo struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market Market `json:"market"`
}
