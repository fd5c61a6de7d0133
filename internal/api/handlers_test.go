package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-monitor/internal/backtest"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
	"signal-monitor/internal/scanner"
)

type mockDetector struct {
	got scanner.Request
	err error
}

func (m *mockDetector) Detect(_ context.Context, req scanner.Request) (scanner.Batch, error) {
	m.got = req
	if m.err != nil {
		return scanner.Batch{}, m.err
	}
	return scanner.Batch{
		RunID:    "run-1",
		Results:  []scanner.SymbolResult{{Symbol: req.Symbols[0], Signals: []model.Signal{}}},
		Failures: []model.Failure{{Symbol: "BAD", Error: "no data"}},
	}, nil
}

type mockBacktester struct {
	got backtest.Request
}

func (m *mockBacktester) Run(_ context.Context, req backtest.Request) (backtest.Batch, error) {
	m.got = req
	return backtest.Batch{RunID: "run-2", Results: []backtest.SymbolResult{}}, nil
}

type mockHistory struct {
	limit int
	err   error
}

func (m *mockHistory) History(_ context.Context, limit int) ([]model.SignalRecord, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	return []model.SignalRecord{{Symbol: "600000", Direction: model.DirectionBuy, Indicator: model.IndicatorDKX}}, nil
}

type mockSymbols struct {
	q      string
	market model.Market
}

func (m *mockSymbols) SearchSymbols(_ context.Context, q string, market model.Market) ([]model.SymbolInfo, error) {
	m.q, m.market = q, market
	return nil, nil
}

type mockHealth struct{ code int }

func (m mockHealth) Report() (metrics.Report, int) {
	status := "healthy"
	if m.code != http.StatusOK {
		status = "unhealthy"
	}
	return metrics.Report{Status: status}, m.code
}

type fixture struct {
	router   *gin.Engine
	detector *mockDetector
	bt       *mockBacktester
	history  *mockHistory
	symbols  *mockSymbols
}

func newFixture(health int) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		detector: &mockDetector{},
		bt:       &mockBacktester{},
		history:  &mockHistory{},
		symbols:  &mockSymbols{},
	}
	h := NewHandler(f.detector, f.bt, f.history, f.symbols, mockHealth{code: health}, 5)
	f.router = NewRouter(h, nil)
	return f
}

func (f *fixture) do(method, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestDetectDKX(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantLookback int
		wantRange    bool
	}{
		{name: "default lookback", body: `{"symbols":["600000"]}`, wantStatus: http.StatusOK, wantLookback: 5},
		{name: "explicit lookback", body: `{"symbols":["600000"],"lookback":3}`, wantStatus: http.StatusOK, wantLookback: 3},
		{name: "negative lookback", body: `{"symbols":["600000"],"lookback":-7}`, wantStatus: http.StatusOK, wantLookback: 7},
		{name: "zero lookback means all", body: `{"symbols":["600000"],"lookback":0}`, wantStatus: http.StatusOK, wantLookback: 0},
		{name: "time range", body: `{"symbols":["600000"],"start_time":"2024-01-02","end_time":"2024-03-01 15:00"}`, wantStatus: http.StatusOK, wantRange: true},
		{name: "missing symbols", body: `{"market":"stock"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown market", body: `{"symbols":["A"],"market":"bonds"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown period", body: `{"symbols":["A"],"period":"7"}`, wantStatus: http.StatusBadRequest},
		{name: "inverted range", body: `{"symbols":["A"],"start_time":"2024-03-01","end_time":"2024-01-01"}`, wantStatus: http.StatusBadRequest},
		{name: "bad time", body: `{"symbols":["A"],"start_time":"yesterday"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(http.StatusOK)
			w := f.do(http.MethodPost, "/api/detect/dkx", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
				assert.NotEmpty(t, e.Error)
				return
			}
			got := f.detector.got
			assert.Equal(t, model.IndicatorDKX, got.Indicator.Kind)
			assert.Equal(t, model.MarketStock, got.Market)
			assert.Equal(t, model.PeriodDaily, got.Period)
			assert.Equal(t, tt.wantRange, got.Scope.IsRange())
			if tt.wantRange {
				assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, markethours.CST), got.Scope.Start)
				assert.Equal(t, time.Date(2024, 3, 1, 15, 0, 0, 0, markethours.CST), got.Scope.End)
			} else {
				assert.Equal(t, tt.wantLookback, got.Scope.Lookback)
			}
		})
	}
}

func TestDetectDKX_ResponseShape(t *testing.T) {
	f := newFixture(http.StatusOK)
	w := f.do(http.MethodPost, "/api/detect/dkx", `{"symbols":["600000"],"period":"30","market":"futures"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"run_id":"run-1",
		"results":[{"symbol":"600000","symbol_name":"","signals":[],"chart_data":null}],
		"failures":[{"symbol":"BAD","error":"no data"}]
	}`, w.Body.String())
	assert.Equal(t, model.Period("30"), f.detector.got.Period)
	assert.Equal(t, model.MarketFutures, f.detector.got.Market)
}

func TestDetectMA(t *testing.T) {
	f := newFixture(http.StatusOK)
	w := f.do(http.MethodPost, "/api/detect/ma", `{"symbols":["A"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.IndicatorMA, f.detector.got.Indicator.Kind)
	assert.Equal(t, 5, f.detector.got.Indicator.Short)
	assert.Equal(t, 10, f.detector.got.Indicator.Long)

	w = f.do(http.MethodPost, "/api/detect/ma", `{"symbols":["A"],"short_period":3,"long_period":8,"lookback":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, f.detector.got.Indicator.Short)
	assert.Equal(t, 8, f.detector.got.Indicator.Long)
	assert.Equal(t, 2, f.detector.got.Scope.Lookback)

	w = f.do(http.MethodPost, "/api/detect/ma", `{"symbols":["A"],"short_period":-3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetect_ServiceError(t *testing.T) {
	f := newFixture(http.StatusOK)
	f.detector.err = errors.New("boom")
	w := f.do(http.MethodPost, "/api/detect/dkx", `{"symbols":["A"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())
}

func TestBacktestDKX(t *testing.T) {
	f := newFixture(http.StatusOK)
	w := f.do(http.MethodPost, "/api/backtest/dkx",
		`{"symbols":["FG205"],"market":"futures","period":"60","start_time":"2024-01-02","end_time":"2024-06-28","lot_size":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := f.bt.got
	assert.Equal(t, []string{"FG205"}, got.Symbols)
	assert.Equal(t, model.MarketFutures, got.Market)
	assert.Equal(t, model.Period("60"), got.Period)
	assert.Equal(t, 5, got.LotSize)
	assert.Equal(t, 0.0, got.InitialCapital, "service applies the default")
	assert.Equal(t, model.IndicatorDKX, got.Indicator.Kind)
	assert.Equal(t, time.Date(2024, 6, 28, 0, 0, 0, 0, markethours.CST), got.End)

	w = f.do(http.MethodPost, "/api/backtest/dkx", `{"symbols":["A"],"lot_size":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPost, "/api/backtest/dkx", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(http.StatusOK)
	w := f.do(http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultHistoryLimit, f.history.limit)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "600000", resp.Signals[0].Symbol)

	f.do(http.MethodGet, "/api/history?limit=7", "")
	assert.Equal(t, 7, f.history.limit)

	w = f.do(http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.history.err = errors.New("db locked")
	w = f.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSearchSymbols(t *testing.T) {
	f := newFixture(http.StatusOK)
	w := f.do(http.MethodGet, "/api/symbols/search?q=fg&market=futures", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":[]}`, w.Body.String())
	assert.Equal(t, "fg", f.symbols.q)
	assert.Equal(t, model.MarketFutures, f.symbols.market)

	w = f.do(http.MethodGet, "/api/symbols/search?q=fg&market=fx", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	w := newFixture(http.StatusOK).do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = newFixture(http.StatusServiceUnavailable).do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	w := newFixture(http.StatusOK).do(http.MethodOptions, "/api/detect/dkx", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
