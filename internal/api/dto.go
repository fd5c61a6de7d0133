package api

import "signal-monitor/internal/model"

// Request defaults.
const (
	DefaultShortPeriod  = 5
	DefaultLongPeriod   = 10
	DefaultHistoryLimit = 100
)

// DetectRequest is the body of POST /api/detect/dkx.
type DetectRequest struct {
	Symbols   []string `json:"symbols" binding:"required,min=1"`
	Market    string   `json:"market"`
	Period    string   `json:"period"`
	Lookback  *int     `json:"lookback"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
}

// MADetectRequest is the body of POST /api/detect/ma.
type MADetectRequest struct {
	DetectRequest
	ShortPeriod int `json:"short_period"`
	LongPeriod  int `json:"long_period"`
}

// BacktestRequest is the body of POST /api/backtest/dkx.
type BacktestRequest struct {
	Symbols        []string `json:"symbols" binding:"required,min=1"`
	Market         string   `json:"market"`
	Period         string   `json:"period"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	InitialCapital float64  `json:"initial_capital"`
	LotSize        int      `json:"lot_size"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Count   int                  `json:"count"`
	Signals []model.SignalRecord `json:"signals"`
}

// SearchResponse is the body of GET /api/symbols/search.
type SearchResponse struct {
	Results []model.SymbolInfo `json:"results"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
