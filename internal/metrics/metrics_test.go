package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SignalDetected("DKX", "BUY")
	m.SignalDetected("DKX", "BUY")
	m.SymbolFailed("load")
	m.BacktestRun(4)
	m.ContractLookup("hit")
	m.BreakerState(1, true)

	assert.Equal(t, 2.0, value(t, m.SignalsTotal.WithLabelValues("DKX", "BUY")))
	assert.Equal(t, 1.0, value(t, m.SymbolFailures.WithLabelValues("load")))
	assert.Equal(t, 4.0, value(t, m.TradesTotal))
	assert.Equal(t, 1.0, value(t, m.BacktestRuns))
	assert.Equal(t, 1.0, value(t, m.ContractCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, value(t, m.RedisCircuitBreakerState))
	assert.Equal(t, 1.0, value(t, m.RedisCircuitBreakerTrips))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.SignalDetected("MA", "SELL")
	m.SymbolFailed("detect")
	m.ObserveSymbol("detect", time.Now())
	m.ObserveResample(time.Now())
	m.DetectRun()
	m.StreamClients(3)
	m.StreamDropped()
}

func TestHealthStatus_Report(t *testing.T) {
	h := NewHealthStatus(true)
	h.SetSQLiteOK(true)

	rep, code := h.Report()
	assert.Equal(t, "degraded", rep.Status)
	assert.Equal(t, http.StatusOK, code)

	h.SetRedisConnected(true)
	rep, _ = h.Report()
	assert.Equal(t, "healthy", rep.Status)

	h.SetSQLiteOK(false)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
}

func TestHealthStatus_RedisDisabledIsHealthy(t *testing.T) {
	h := NewHealthStatus(false)
	h.SetSQLiteOK(true)
	rep, code := h.Report()
	assert.Equal(t, "healthy", rep.Status)
	assert.Equal(t, http.StatusOK, code)
}
