package execution

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-monitor/internal/model"
)

// RunRecord is one symbol's backtest outcome within a batch run.
type RunRecord struct {
	RunID          string
	Symbol         string
	Market         model.Market
	Period         model.Period
	InitialCapital float64
	LotSize        int
	Stats          model.Statistics
	Trades         []model.Trade
}

// Journal persists backtest runs and their trades to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id           TEXT NOT NULL,
		symbol           TEXT NOT NULL,
		market           TEXT NOT NULL,
		period           TEXT NOT NULL,
		initial_capital  REAL NOT NULL,
		lot_size         INTEGER NOT NULL,
		total_trades     INTEGER NOT NULL,
		total_profit     REAL NOT NULL,
		return_on_margin REAL NOT NULL,
		profit_factor    REAL NOT NULL,
		sharpe_ratio     REAL NOT NULL,
		max_drawdown     REAL NOT NULL,
		statistics       TEXT NOT NULL,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, symbol)
	);
	CREATE TABLE IF NOT EXISTS backtest_trades (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT NOT NULL,
		symbol            TEXT NOT NULL,
		sequence_id       INTEGER NOT NULL,
		traded_at         TEXT NOT NULL,
		direction         TEXT NOT NULL,
		nominal_price     REAL NOT NULL,
		executed_price    REAL NOT NULL,
		slippage          REAL NOT NULL,
		quantity          INTEGER NOT NULL,
		commission        REAL NOT NULL,
		profit            REAL NOT NULL,
		cumulative_profit REAL NOT NULL,
		margin_occupied   REAL NOT NULL,
		risk_degree       REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id, symbol);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened backtest journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordRun persists a symbol run and its trades in one transaction.
// Recording the same (run, symbol) twice replaces the earlier rows.
func (j *Journal) RecordRun(ctx context.Context, rec RunRecord) error {
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("journal: encode statistics: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM backtest_trades WHERE run_id = ? AND symbol = ?`, rec.RunID, rec.Symbol); err != nil {
		return fmt.Errorf("journal: clear trades: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO backtest_runs
		 (run_id, symbol, market, period, initial_capital, lot_size, total_trades, total_profit,
		  return_on_margin, profit_factor, sharpe_ratio, max_drawdown, statistics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Symbol, string(rec.Market), string(rec.Period), rec.InitialCapital, rec.LotSize,
		rec.Stats.TotalTrades, rec.Stats.TotalProfit, rec.Stats.ReturnOnMargin, rec.Stats.ProfitFactor,
		rec.Stats.SharpeRatio, rec.Stats.MaxDrawdown, string(stats),
	); err != nil {
		return fmt.Errorf("journal: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_trades
		 (run_id, symbol, sequence_id, traded_at, direction, nominal_price, executed_price, slippage,
		  quantity, commission, profit, cumulative_profit, margin_occupied, risk_degree)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range rec.Trades {
		if _, err := stmt.ExecContext(ctx,
			rec.RunID, rec.Symbol, t.SequenceID, t.Time.Format(time.RFC3339), string(t.Direction),
			t.NominalPrice, t.ExecutedPrice, t.Slippage, t.Quantity, t.Commission, t.Profit,
			t.CumulativeProfit, t.MarginOccupied, t.RiskDegree,
		); err != nil {
			return fmt.Errorf("journal: insert trade %d: %w", t.SequenceID, err)
		}
	}
	return tx.Commit()
}

// RunSummary represents a row from the backtest_runs table.
type RunSummary struct {
	RunID          string           `json:"run_id"`
	Symbol         string           `json:"symbol"`
	Market         string           `json:"market"`
	Period         string           `json:"period"`
	InitialCapital float64          `json:"initial_capital"`
	LotSize        int              `json:"lot_size"`
	Stats          model.Statistics `json:"statistics"`
}

// GetRun returns every symbol summary recorded for runID.
func (j *Journal) GetRun(ctx context.Context, runID string) ([]RunSummary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, symbol, market, period, initial_capital, lot_size, statistics
		 FROM backtest_runs WHERE run_id = ? ORDER BY symbol`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var stats string
		if err := rows.Scan(&s.RunID, &s.Symbol, &s.Market, &s.Period, &s.InitialCapital, &s.LotSize, &stats); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stats), &s.Stats); err != nil {
			return nil, fmt.Errorf("journal: decode statistics for %s: %w", s.Symbol, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTrades returns the journaled trades of one symbol run in sequence order.
func (j *Journal) GetTrades(ctx context.Context, runID, symbol string) ([]model.Trade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT sequence_id, traded_at, direction, nominal_price, executed_price, slippage, quantity,
		        commission, profit, cumulative_profit, margin_occupied, risk_degree
		 FROM backtest_trades WHERE run_id = ? AND symbol = ? ORDER BY sequence_id`, runID, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var ts, dir string
		if err := rows.Scan(&t.SequenceID, &ts, &dir, &t.NominalPrice, &t.ExecutedPrice, &t.Slippage,
			&t.Quantity, &t.Commission, &t.Profit, &t.CumulativeProfit, &t.MarginOccupied, &t.RiskDegree); err != nil {
			return nil, err
		}
		t.Symbol = symbol
		t.Direction = model.TradeDirection(dir)
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			t.Time = parsed
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
