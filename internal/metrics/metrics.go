package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for signal detection and backtesting.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DetectRuns     prometheus.Counter
	BacktestRuns   prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: indicator, direction
	TradesTotal    prometheus.Counter
	SymbolFailures *prometheus.CounterVec // labels: stage
	SymbolDuration *prometheus.HistogramVec
	ResampleDur    prometheus.Histogram

	// Contract cache
	ContractCache *prometheus.CounterVec // labels: result=hit|miss|bypass

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Signal stream
	WSClients      prometheus.Gauge
	SignalsDropped prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DetectRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalmon_detect_runs_total",
			Help: "Detection batch requests processed",
		}),
		BacktestRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalmon_backtest_runs_total",
			Help: "Backtest batch requests processed",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalmon_signals_total",
			Help: "Crossover signals detected (by indicator and direction)",
		}, []string{"indicator", "direction"}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalmon_trades_total",
			Help: "Simulated trades emitted by backtests",
		}),
		SymbolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalmon_symbol_failures_total",
			Help: "Symbols skipped in a batch (by pipeline stage)",
		}, []string{"stage"}),
		SymbolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalmon_symbol_duration_seconds",
			Help:    "Per-symbol pipeline latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
		ResampleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalmon_resample_duration_seconds",
			Help:    "Bar aggregation latency per series",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
		ContractCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalmon_contract_cache_total",
			Help: "Contract lookups by cache result",
		}, []string{"result"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalmon_redis_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalmon_redis_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalmon_ws_clients",
			Help: "Connected signal stream clients",
		}),
		SignalsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalmon_ws_dropped_total",
			Help: "Signal messages dropped for slow stream clients",
		}),
	}

	reg.MustRegister(
		m.DetectRuns,
		m.BacktestRuns,
		m.SignalsTotal,
		m.TradesTotal,
		m.SymbolFailures,
		m.SymbolDuration,
		m.ResampleDur,
		m.ContractCache,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.WSClients,
		m.SignalsDropped,
	)
	return m
}

// ObserveSymbol records the latency of one symbol's pipeline for op.
func (m *Metrics) ObserveSymbol(op string, start time.Time) {
	if m == nil {
		return
	}
	m.SymbolDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SymbolFailed counts a skipped symbol at stage.
func (m *Metrics) SymbolFailed(stage string) {
	if m == nil {
		return
	}
	m.SymbolFailures.WithLabelValues(stage).Inc()
}

// SignalDetected counts a detected signal.
func (m *Metrics) SignalDetected(indicator, direction string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(indicator, direction).Inc()
}

// DetectRun counts a detection batch.
func (m *Metrics) DetectRun() {
	if m == nil {
		return
	}
	m.DetectRuns.Inc()
}

// BacktestRun counts a backtest batch and its trades.
func (m *Metrics) BacktestRun(trades int) {
	if m == nil {
		return
	}
	m.BacktestRuns.Inc()
	m.TradesTotal.Add(float64(trades))
}

// ObserveResample records bar aggregation latency.
func (m *Metrics) ObserveResample(start time.Time) {
	if m == nil {
		return
	}
	m.ResampleDur.Observe(time.Since(start).Seconds())
}

// ContractLookup counts a contract cache result (hit, miss or bypass).
func (m *Metrics) ContractLookup(result string) {
	if m == nil {
		return
	}
	m.ContractCache.WithLabelValues(result).Inc()
}

// BreakerState records a circuit breaker transition.
func (m *Metrics) BreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.RedisCircuitBreakerState.Set(float64(state))
	if tripped {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// StreamClients sets the connected stream client gauge.
func (m *Metrics) StreamClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

// StreamDropped counts a message dropped for a slow client.
func (m *Metrics) StreamDropped() {
	if m == nil {
		return
	}
	m.SignalsDropped.Inc()
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool `json:"redis_enabled"`
	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// Probe runs one round of dependency checks.
func (h *HealthStatus) Probe(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if rdb != nil {
		h.CheckRedis(probeCtx, rdb)
	}
	if sqlDB != nil {
		h.CheckSQLite(probeCtx, sqlDB)
	}
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	h.Probe(ctx, rdb, sqlDB)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Probe(ctx, rdb, sqlDB)
			}
		}
	}()
}

// Report is the JSON health document.
type Report struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	RedisEnabled    bool    `json:"redis_enabled"`
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	LastCheckAt     string  `json:"last_check_at"`
}

// Report summarizes the current health. SQLite down is unhealthy; Redis
// down while enabled is degraded, since every Redis path has a fallback.
func (h *HealthStatus) Report() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	return Report{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}, httpCode
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, httpCode := h.Report()
	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
