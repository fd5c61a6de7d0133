// Package app wires the stores, repositories and services shared by the
// API server and the command line tools.
package app

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	goredis "github.com/go-redis/redis/v8"

	"signal-monitor/config"
	"signal-monitor/internal/backtest"
	"signal-monitor/internal/contract"
	"signal-monitor/internal/execution"
	"signal-monitor/internal/marketdata/loader"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
	"signal-monitor/internal/notification"
	"signal-monitor/internal/scanner"
	sqlitestore "signal-monitor/internal/store/sqlite"
	redisstore "signal-monitor/internal/store/redis"
)

// App holds the opened infrastructure. Redis and Breaker are nil when
// Redis is disabled or unreachable.
type App struct {
	Config    *config.Config
	Metrics   *metrics.Metrics
	Writer    *sqlitestore.Writer
	Reader    *sqlitestore.Reader
	Signals   *sqlitestore.SignalHistory
	Contracts model.ContractRepository
	Loader    *loader.Loader
	Redis     *goredis.Client
	Breaker   *redisstore.CircuitBreaker

	journal *execution.Journal
}

// Open opens SQLite, loads the contract table and, when configured,
// connects Redis. A Redis failure is logged and Redis stays disabled.
// m may be nil.
func Open(cfg *config.Config, m *metrics.Metrics) (*App, error) {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("app: create data dir: %w", err)
		}
	}

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		return nil, err
	}
	r, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		w.Close()
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Metrics: m,
		Writer:  w,
		Reader:  r,
		Signals: sqlitestore.NewSignalHistory(w),
		Loader:  loader.New(r, m),
	}

	files, err := contract.LoadFile(cfg.ContractsPath, r)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Contracts = files

	if cfg.RedisEnabled() {
		rdb, err := redisstore.Connect(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Printf("[app] redis unavailable, continuing without it: %v", err)
		} else {
			a.Redis = rdb
			a.Breaker = redisstore.NewBreaker(m)
			a.Contracts = redisstore.NewCachingContractRepository(rdb, cfg.ContractCacheTTL, files, a.Breaker, m)
		}
	}
	return a, nil
}

// Scanner creates the detection service. Signals are stored in SQLite and
// published to Redis (when connected), the configured alert channels and
// any extra publishers.
func (a *App) Scanner(extra ...model.SignalPublisher) *scanner.Service {
	pubs := a.Publishers()
	pubs = append(pubs, extra...)
	return scanner.NewService(scanner.Config{
		Workers:     a.Config.BatchWorkers,
		ChartWindow: a.Config.ChartWindow,
	}, a.Loader, a.Contracts, a.Signals, a.Metrics, pubs...)
}

// Publishers returns the Redis publisher and alert channels enabled by config.
func (a *App) Publishers() []model.SignalPublisher {
	var pubs []model.SignalPublisher
	if a.Redis != nil {
		pubs = append(pubs, redisstore.NewSignalPublisher(a.Redis, a.Breaker))
	}
	var notifiers []notification.Notifier
	if a.Config.SignalWebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(a.Config.SignalWebhookURL))
	}
	if a.Config.TelegramEnabled() {
		notifiers = append(notifiers, notification.NewTelegramNotifier(a.Config.TelegramToken, a.Config.TelegramChatID))
	}
	if len(notifiers) > 0 {
		pubs = append(pubs, notification.NewSignalAlerter(notifiers...))
	}
	return pubs
}

// Backtester creates the backtest service journaling into SQLite.
func (a *App) Backtester() (*backtest.Service, error) {
	if a.journal == nil {
		j, err := execution.NewJournal(a.Config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("app: open journal: %w", err)
		}
		a.journal = j
	}
	return backtest.NewService(backtest.Config{
		Workers:        a.Config.BatchWorkers,
		CommissionRate: a.Config.CommissionRate,
		SlippageTicks:  a.Config.SlippageTicks,
	}, a.Loader, a.Contracts, a.journal, a.Metrics), nil
}

// Close releases every opened resource.
func (a *App) Close() {
	if a.journal != nil {
		a.journal.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Reader != nil {
		a.Reader.Close()
	}
	if a.Writer != nil {
		a.Writer.Close()
	}
}
