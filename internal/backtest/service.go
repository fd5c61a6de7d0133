package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"time"

	"signal-monitor/internal/execution"
	"signal-monitor/internal/indicator"
	"signal-monitor/internal/logger"
	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
	"signal-monitor/internal/strategy"
	"signal-monitor/internal/workpool"
)

// Defaults applied to zero request fields.
const (
	DefaultInitialCapital = 100000.0
	DefaultLotSize        = 20
)

// SeriesLoader produces the analysis series for a query.
type SeriesLoader interface {
	Load(ctx context.Context, q model.BarQuery, c model.ContractInfo) (model.BarSeries, error)
}

// RunJournal records finished symbol runs.
type RunJournal interface {
	RecordRun(ctx context.Context, rec execution.RunRecord) error
}

// Request describes a multi-symbol backtest.
type Request struct {
	Symbols        []string
	Market         model.Market
	Period         model.Period
	Start          time.Time
	End            time.Time
	InitialCapital float64
	LotSize        int
	Indicator      indicator.Config
}

// SymbolResult is the per-symbol payload of a batch.
type SymbolResult struct {
	Symbol      string               `json:"symbol"`
	SymbolName  string               `json:"symbol_name"`
	Trades      []model.Trade        `json:"trades"`
	Statistics  model.Statistics     `json:"statistics"`
	EquityCurve []model.EquityPoint  `json:"equity_curve"`
	ChartData   []indicator.ChartRow `json:"chart_data"`
	Position    model.PositionState  `json:"final_position"`
}

// Batch is the outcome of a multi-symbol backtest. Results are ordered by
// return on margin, then profit factor (both descending), then symbol.
type Batch struct {
	RunID    string          `json:"run_id"`
	Results  []SymbolResult  `json:"results"`
	Failures []model.Failure `json:"failures"`
}

// Config holds the service-wide settings.
type Config struct {
	Workers        int
	CommissionRate float64
	SlippageTicks  int
}

// Service runs backtests: load -> indicators -> simulate -> journal.
type Service struct {
	cfg       Config
	loader    SeriesLoader
	contracts model.ContractRepository
	journal   RunJournal
	metrics   *metrics.Metrics
}

// NewService creates a backtest service. journal and m may be nil.
func NewService(cfg Config, loader SeriesLoader, contracts model.ContractRepository, journal RunJournal, m *metrics.Metrics) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{cfg: cfg, loader: loader, contracts: contracts, journal: journal, metrics: m}
}

// Run backtests every requested symbol. A symbol that fails at any stage
// is reported in Failures and never aborts the batch.
func (s *Service) Run(ctx context.Context, req Request) (Batch, error) {
	req, err := normalize(req)
	if err != nil {
		return Batch{}, err
	}

	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	slog.InfoContext(ctx, "backtest started", append(logger.LogWithRun(ctx),
		slog.Int("symbols", len(req.Symbols)),
		slog.String("period", req.Period.String()),
		slog.String("indicator", string(req.Indicator.Kind)))...)

	results := workpool.Run(ctx, s.cfg.Workers, req.Symbols, func(ctx context.Context, symbol string) (SymbolResult, error) {
		return s.runSymbol(ctx, runID, req, symbol)
	})
	values, failures := model.Split(results)
	SortResults(values)

	trades := 0
	for _, v := range values {
		trades += len(v.Trades)
	}
	s.metrics.BacktestRun(trades)
	slog.InfoContext(ctx, "backtest finished", append(logger.LogWithRun(ctx),
		slog.Int("ok", len(values)), slog.Int("failed", len(failures)), slog.Int("trades", trades))...)

	return Batch{RunID: runID, Results: values, Failures: failures}, nil
}

func (s *Service) runSymbol(ctx context.Context, runID string, req Request, symbol string) (SymbolResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSymbol("backtest", start)

	contract, err := s.contracts.GetContract(ctx, req.Market, symbol)
	if err != nil {
		s.fail("contract", symbol, err)
		return SymbolResult{}, err
	}
	contract = contract.Normalized()

	series, err := s.loader.Load(ctx, model.BarQuery{
		Symbol: symbol, Market: req.Market, Period: req.Period, Start: req.Start, End: req.End,
	}, contract)
	if err != nil {
		s.fail("load", symbol, err)
		return SymbolResult{}, err
	}

	frame, err := indicator.Compute(series, req.Indicator)
	if err != nil {
		s.fail("indicator", symbol, err)
		return SymbolResult{}, err
	}

	strat, err := strategy.NewCrossover(req.Indicator)
	if err != nil {
		return SymbolResult{}, err
	}
	sim, err := NewSimulator(ParamsFor(contract, req.InitialCapital, req.LotSize, s.cfg.CommissionRate, s.cfg.SlippageTicks), strat)
	if err != nil {
		return SymbolResult{}, err
	}
	rep, err := sim.Run(series)
	if err != nil {
		s.fail("simulate", symbol, err)
		return SymbolResult{}, err
	}

	if s.journal != nil {
		if err := s.journal.RecordRun(ctx, execution.RunRecord{
			RunID:          runID,
			Symbol:         symbol,
			Market:         req.Market,
			Period:         req.Period,
			InitialCapital: req.InitialCapital,
			LotSize:        req.LotSize,
			Stats:          rep.Stats,
			Trades:         rep.Trades,
		}); err != nil {
			log.Printf("[backtest] %s: journal write failed: %v", symbol, err)
		}
	}

	return SymbolResult{
		Symbol:      symbol,
		SymbolName:  contract.Name,
		Trades:      rep.Trades,
		Statistics:  rep.Stats,
		EquityCurve: rep.Equity,
		ChartData:   frame.Rows(),
		Position:    rep.Final,
	}, nil
}

func (s *Service) fail(stage, symbol string, err error) {
	s.metrics.SymbolFailed(stage)
	if errors.Is(err, model.ErrNotEnoughData) || errors.Is(err, model.ErrNoData) {
		log.Printf("[backtest] skip %s: %v", symbol, err)
		return
	}
	log.Printf("[backtest] %s failed at %s: %v", symbol, stage, err)
}

func normalize(req Request) (Request, error) {
	if len(req.Symbols) == 0 {
		return req, fmt.Errorf("backtest: no symbols")
	}
	if req.Market == "" {
		req.Market = model.MarketStock
	}
	if req.Period == "" {
		req.Period = model.PeriodDaily
	}
	if req.InitialCapital == 0 {
		req.InitialCapital = DefaultInitialCapital
	}
	if req.LotSize == 0 {
		req.LotSize = DefaultLotSize
	}
	if req.Indicator.Kind == "" {
		req.Indicator = indicator.DKXConfig()
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		return req, fmt.Errorf("%w: end %s before start %s", model.ErrInvalidRange,
			req.End.Format(time.RFC3339), req.Start.Format(time.RFC3339))
	}
	return req, req.Indicator.Validate()
}

// SortResults orders results by return on margin desc, profit factor
// desc, then symbol asc.
func SortResults(rs []SymbolResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].Statistics, rs[j].Statistics
		if a.ReturnOnMargin != b.ReturnOnMargin {
			return a.ReturnOnMargin > b.ReturnOnMargin
		}
		if a.ProfitFactor != b.ProfitFactor {
			return a.ProfitFactor > b.ProfitFactor
		}
		return rs[i].Symbol < rs[j].Symbol
	})
}
