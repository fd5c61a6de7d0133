// Package scanner runs crossover detection over a batch of symbols,
// records new signals and fans them out to subscribers.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"signal-monitor/internal/indicator"
	"signal-monitor/internal/logger"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
	"signal-monitor/internal/strategy"
	"signal-monitor/internal/workpool"
)

// DefaultChartWindow is the number of frame rows returned per symbol.
const DefaultChartWindow = 100

// SeriesLoader produces the analysis series for a query.
type SeriesLoader interface {
	Load(ctx context.Context, q model.BarQuery, c model.ContractInfo) (model.BarSeries, error)
}

// Request describes a multi-symbol detection.
type Request struct {
	Symbols   []string
	Market    model.Market
	Period    model.Period
	Scope     strategy.Scope
	Indicator indicator.Config
}

// SymbolResult is the per-symbol payload of a detection batch.
type SymbolResult struct {
	Symbol     string               `json:"symbol"`
	SymbolName string               `json:"symbol_name"`
	Signals    []model.Signal       `json:"signals"`
	ChartData  []indicator.ChartRow `json:"chart_data"`
}

// Batch is the outcome of a detection request. Results keep request order.
type Batch struct {
	RunID    string          `json:"run_id"`
	Results  []SymbolResult  `json:"results"`
	Failures []model.Failure `json:"failures"`
}

// Config holds the service-wide settings.
type Config struct {
	Workers     int
	ChartWindow int
}

// Service detects crossovers for batches of symbols.
type Service struct {
	cfg        Config
	loader     SeriesLoader
	contracts  model.ContractRepository
	store      model.SignalStore
	publishers []model.SignalPublisher
	detector   *strategy.Detector
	metrics    *metrics.Metrics
}

// NewService creates a detection service. store and m may be nil; every
// publisher receives each newly stored signal.
func NewService(cfg Config, loader SeriesLoader, contracts model.ContractRepository, store model.SignalStore, m *metrics.Metrics, publishers ...model.SignalPublisher) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ChartWindow <= 0 {
		cfg.ChartWindow = DefaultChartWindow
	}
	return &Service{
		cfg:        cfg,
		loader:     loader,
		contracts:  contracts,
		store:      store,
		publishers: publishers,
		detector:   strategy.NewDetector(),
		metrics:    m,
	}
}

// Detect scans every requested symbol. A symbol that fails at any stage is
// reported in Failures and never aborts the batch.
func (s *Service) Detect(ctx context.Context, req Request) (Batch, error) {
	if len(req.Symbols) == 0 {
		return Batch{}, fmt.Errorf("scanner: no symbols")
	}
	if req.Market == "" {
		req.Market = model.MarketStock
	}
	if req.Period == "" {
		req.Period = model.PeriodDaily
	}
	if req.Indicator.Kind == "" {
		req.Indicator = indicator.DKXConfig()
	}
	if err := req.Indicator.Validate(); err != nil {
		return Batch{}, err
	}

	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	s.metrics.DetectRun()

	results := workpool.Run(ctx, s.cfg.Workers, req.Symbols, func(ctx context.Context, symbol string) (SymbolResult, error) {
		return s.detectSymbol(ctx, req, symbol)
	})
	values, failures := model.Split(results)

	found := 0
	for _, v := range values {
		found += len(v.Signals)
	}
	slog.InfoContext(ctx, "detection finished", append(logger.LogWithRun(ctx),
		slog.String("indicator", string(req.Indicator.Kind)),
		slog.String("period", req.Period.String()),
		slog.Int("ok", len(values)), slog.Int("failed", len(failures)), slog.Int("signals", found))...)

	return Batch{RunID: runID, Results: values, Failures: failures}, nil
}

func (s *Service) detectSymbol(ctx context.Context, req Request, symbol string) (SymbolResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSymbol("detect", start)

	contract, err := s.contracts.GetContract(ctx, req.Market, symbol)
	if err != nil {
		s.fail("contract", symbol, err)
		return SymbolResult{}, err
	}
	contract = contract.Normalized()

	series, err := s.loader.Load(ctx, model.BarQuery{Symbol: symbol, Market: req.Market, Period: req.Period}, contract)
	if err != nil {
		s.fail("load", symbol, err)
		return SymbolResult{}, err
	}
	frame, err := indicator.Compute(series, req.Indicator)
	if err != nil {
		s.fail("indicator", symbol, err)
		return SymbolResult{}, err
	}

	signals := s.detector.Detect(frame, req.Scope)
	for _, sig := range signals {
		s.metrics.SignalDetected(string(frame.Kind), string(sig.Direction))
		s.record(ctx, model.NewSignalRecord(symbol, req.Market, sig))
	}

	return SymbolResult{
		Symbol:     symbol,
		SymbolName: contract.Name,
		Signals:    signals,
		ChartData:  frame.Window(s.cfg.ChartWindow),
	}, nil
}

// record stores a signal and publishes it when it is new. Storage and
// publish errors are logged; detection results are returned regardless.
func (s *Service) record(ctx context.Context, rec model.SignalRecord) {
	if s.store != nil {
		inserted, err := s.store.SaveSignal(ctx, rec)
		if err != nil {
			log.Printf("[scanner] save signal %s %s: %v", rec.Symbol, rec.SignalDate, err)
			return
		}
		if !inserted {
			return
		}
	}
	for _, p := range s.publishers {
		if err := p.PublishSignal(ctx, rec); err != nil {
			log.Printf("[scanner] publish signal %s: %v", rec.Symbol, err)
		}
	}
}

func (s *Service) fail(stage, symbol string, err error) {
	s.metrics.SymbolFailed(stage)
	if errors.Is(err, model.ErrNotEnoughData) || errors.Is(err, model.ErrNoData) {
		log.Printf("[scanner] skip %s: %v", symbol, err)
		return
	}
	log.Printf("[scanner] %s failed at %s: %v", symbol, stage, err)
}
