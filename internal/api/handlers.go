package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"signal-monitor/internal/backtest"
	"signal-monitor/internal/indicator"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
	"signal-monitor/internal/scanner"
	"signal-monitor/internal/strategy"
)

// Detector runs multi-symbol crossover detection.
type Detector interface {
	Detect(ctx context.Context, req scanner.Request) (scanner.Batch, error)
}

// Backtester runs multi-symbol backtests.
type Backtester interface {
	Run(ctx context.Context, req backtest.Request) (backtest.Batch, error)
}

// SignalHistory lists stored signals, newest first.
type SignalHistory interface {
	History(ctx context.Context, limit int) ([]model.SignalRecord, error)
}

// SymbolSearcher finds symbols by code or name.
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, q string, market model.Market) ([]model.SymbolInfo, error)
}

// HealthReporter reports dependency health.
type HealthReporter interface {
	Report() (metrics.Report, int)
}

// Handler serves the REST endpoints.
type Handler struct {
	detector        Detector
	backtester      Backtester
	history         SignalHistory
	symbols         SymbolSearcher
	health          HealthReporter
	defaultLookback int
}

// NewHandler creates a Handler. defaultLookback applies when a detection
// request carries neither a lookback nor a time range.
func NewHandler(d Detector, b Backtester, history SignalHistory, symbols SymbolSearcher, health HealthReporter, defaultLookback int) *Handler {
	return &Handler{
		detector:        d,
		backtester:      b,
		history:         history,
		symbols:         symbols,
		health:          health,
		defaultLookback: defaultLookback,
	}
}

// DetectDKX handles POST /api/detect/dkx.
func (h *Handler) DetectDKX(c *gin.Context) {
	var body DetectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	h.detect(c, body, indicator.DKXConfig())
}

// DetectMA handles POST /api/detect/ma.
func (h *Handler) DetectMA(c *gin.Context) {
	var body MADetectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.ShortPeriod == 0 {
		body.ShortPeriod = DefaultShortPeriod
	}
	if body.LongPeriod == 0 {
		body.LongPeriod = DefaultLongPeriod
	}
	if body.ShortPeriod < 0 || body.LongPeriod < 0 {
		badRequest(c, fmt.Errorf("short_period and long_period must be positive"))
		return
	}
	h.detect(c, body.DetectRequest, indicator.MAConfig(body.ShortPeriod, body.LongPeriod))
}

func (h *Handler) detect(c *gin.Context, body DetectRequest, cfg indicator.Config) {
	market, period, err := parseMarketPeriod(body.Market, body.Period)
	if err != nil {
		badRequest(c, err)
		return
	}
	scope, err := h.scope(body)
	if err != nil {
		badRequest(c, err)
		return
	}

	batch, err := h.detector.Detect(c.Request.Context(), scanner.Request{
		Symbols:   body.Symbols,
		Market:    market,
		Period:    period,
		Scope:     scope,
		Indicator: cfg,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// scope builds the detection scope: a time range when either bound is
// given, otherwise a lookback (negative values count the same as positive).
func (h *Handler) scope(body DetectRequest) (strategy.Scope, error) {
	if body.StartTime != "" || body.EndTime != "" {
		start, end, err := parseRange(body.StartTime, body.EndTime)
		if err != nil {
			return strategy.Scope{}, err
		}
		return strategy.Between(start, end), nil
	}
	lookback := h.defaultLookback
	if body.Lookback != nil {
		lookback = *body.Lookback
	}
	if lookback < 0 {
		lookback = -lookback
	}
	return strategy.Lookback(lookback), nil
}

// BacktestDKX handles POST /api/backtest/dkx.
func (h *Handler) BacktestDKX(c *gin.Context) {
	var body BacktestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	market, period, err := parseMarketPeriod(body.Market, body.Period)
	if err != nil {
		badRequest(c, err)
		return
	}
	start, end, err := parseRange(body.StartTime, body.EndTime)
	if err != nil {
		badRequest(c, err)
		return
	}
	if body.InitialCapital < 0 || body.LotSize < 0 {
		badRequest(c, fmt.Errorf("initial_capital and lot_size must not be negative"))
		return
	}

	batch, err := h.backtester.Run(c.Request.Context(), backtest.Request{
		Symbols:        body.Symbols,
		Market:         market,
		Period:         period,
		Start:          start,
		End:            end,
		InitialCapital: body.InitialCapital,
		LotSize:        body.LotSize,
		Indicator:      indicator.DKXConfig(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// History handles GET /api/history?limit=N.
func (h *Handler) History(c *gin.Context) {
	limit := DefaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequest(c, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := h.history.History(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if recs == nil {
		recs = []model.SignalRecord{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Count: len(recs), Signals: recs})
}

// SearchSymbols handles GET /api/symbols/search?q=&market=.
func (h *Handler) SearchSymbols(c *gin.Context) {
	market, err := model.ParseMarket(c.Query("market"))
	if err != nil {
		badRequest(c, err)
		return
	}
	found, err := h.symbols.SearchSymbols(c.Request.Context(), c.Query("q"), market)
	if err != nil {
		fail(c, err)
		return
	}
	if found == nil {
		found = []model.SymbolInfo{}
	}
	c.JSON(http.StatusOK, SearchResponse{Results: found})
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	report, code := h.health.Report()
	c.JSON(code, report)
}

func parseMarketPeriod(m, p string) (model.Market, model.Period, error) {
	market, err := model.ParseMarket(m)
	if err != nil {
		return "", "", err
	}
	if p == "" {
		return market, model.PeriodDaily, nil
	}
	period, err := model.ParsePeriod(p)
	if err != nil {
		return "", "", err
	}
	return market, period, nil
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := markethours.ParseBound(startStr, markethours.CST)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := markethours.ParseBound(endStr, markethours.CST)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_time before start_time", model.ErrInvalidRange)
	}
	return start, end, nil
}

// validation lists the errors reported as 400.
var validation = []error{
	model.ErrInvalidRange,
	model.ErrUnknownPeriod,
	model.ErrUnknownMarket,
}

func fail(c *gin.Context, err error) {
	for _, target := range validation {
		if errors.Is(err, target) {
			badRequest(c, err)
			return
		}
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
