// cmd/apiserver serves crossover detection, backtesting, signal history and
// the live signal stream over HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signal-monitor/config"
	"signal-monitor/internal/api"
	"signal-monitor/internal/app"
	"signal-monitor/internal/gateway"
	"signal-monitor/internal/logger"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[apiserver] starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[apiserver] config: %v", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("[apiserver] %v", err)
	}
	logger.Init("apiserver", level)

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(cfg.RedisEnabled())
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Open stores ----
	a, err := app.Open(cfg, prom)
	if err != nil {
		log.Fatalf("[apiserver] init failed: %v", err)
	}
	defer a.Close()

	health.StartLivenessChecker(ctx, a.Redis, a.Writer.DB(), 10*time.Second)

	// ---- Signal stream ----
	// With Redis, signals reach the hub through the relay so every instance
	// streams every instance's signals; without it the scanner feeds the hub.
	hub := gateway.NewHub(cfg.StreamReplay, prom)
	var extra []model.SignalPublisher
	if a.Redis != nil {
		go gateway.NewRelay(a.Redis, hub).Run(ctx)
	} else {
		extra = append(extra, hub)
	}

	detector := a.Scanner(extra...)
	backtester, err := a.Backtester()
	if err != nil {
		log.Fatalf("[apiserver] %v", err)
	}

	handler := api.NewHandler(detector, backtester, a.Signals, a.Reader, health, cfg.DefaultLookback)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[apiserver] listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[apiserver] http server failed: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[apiserver] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[apiserver] http shutdown: %v", err)
	}
	metricsSrv.Stop(shutdownCtx)

	log.Println("[apiserver] shutdown complete.")
}
