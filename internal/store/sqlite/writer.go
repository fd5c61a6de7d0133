package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-monitor/internal/model"
)

const (
	defaultBatchSize  = 500
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol        TEXT    NOT NULL,
			market        TEXT    NOT NULL,
			period        TEXT    NOT NULL,
			ts            INTEGER NOT NULL,
			open          REAL    NOT NULL,
			high          REAL    NOT NULL,
			low           REAL    NOT NULL,
			close         REAL    NOT NULL,
			volume        REAL    NOT NULL,
			open_interest REAL,
			PRIMARY KEY (market, symbol, period, ts)
		);

		CREATE TABLE IF NOT EXISTS symbols (
			symbol TEXT NOT NULL,
			market TEXT NOT NULL,
			name   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (market, symbol)
		);

		CREATE TABLE IF NOT EXISTS signal_history (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol           TEXT    NOT NULL,
			market           TEXT    NOT NULL,
			signal_date      TEXT    NOT NULL,
			signal_type      TEXT    NOT NULL,
			price            REAL    NOT NULL,
			indicator_type   TEXT    NOT NULL,
			indicator_values TEXT    NOT NULL,
			created_at       INTEGER NOT NULL,
			UNIQUE (symbol, signal_date, signal_type, indicator_type)
		);
		CREATE INDEX IF NOT EXISTS idx_signal_history_created ON signal_history(created_at DESC);
	`)
	return err
}

// BarRow is one bar addressed to its series.
type BarRow struct {
	Symbol string
	Market model.Market
	Period model.Period
	Bar    model.Bar
}

// RunBars reads bar rows from ch and inserts them in batched transactions.
// Flushes every batch size rows OR every flush delay, whichever first.
// Blocks until ctx is cancelled or ch is closed and returns the number of
// rows committed.
func (w *Writer) RunBars(ctx context.Context, ch <-chan BarRow) int {
	batch := make([]BarRow, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	committed := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBars(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			committed += len(batch)
			log.Printf("[sqlite] committed %d bars in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return committed

		case row, ok := <-ch:
			if !ok {
				flush()
				return committed
			}
			batch = append(batch, row)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// WriteSeries upserts every bar of s in one transaction.
func (w *Writer) WriteSeries(market model.Market, s model.BarSeries) error {
	rows := make([]BarRow, len(s.Bars))
	for i, b := range s.Bars {
		rows[i] = BarRow{Symbol: s.Symbol, Market: market, Period: s.Period, Bar: b}
	}
	return w.insertBars(rows)
}

// insertBars upserts a batch of bars in a single transaction.
func (w *Writer) insertBars(rows []BarRow) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, market, period, ts, open, high, low, close, volume, open_interest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		b := r.Bar
		var oi sql.NullFloat64
		if b.OpenInterest != nil {
			oi = sql.NullFloat64{Float64: *b.OpenInterest, Valid: true}
		}
		_, err := stmt.Exec(r.Symbol, string(r.Market), string(r.Period), b.TS.Unix(),
			b.Open, b.High, b.Low, b.Close, b.Volume, oi)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// UpsertSymbol records a symbol and its display name.
func (w *Writer) UpsertSymbol(ctx context.Context, info model.SymbolInfo) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO symbols (symbol, market, name) VALUES (?, ?, ?)
		 ON CONFLICT(market, symbol) DO UPDATE SET name = excluded.name`,
		info.Symbol, string(info.Market), info.Name)
	if err != nil {
		return fmt.Errorf("sqlite upsert symbol %s: %w", info.Symbol, err)
	}
	return nil
}

// GetLastTimestamp returns the last stored bar timestamp of a series.
// Returns the zero time if no bars exist.
func (w *Writer) GetLastTimestamp(market model.Market, symbol string, period model.Period) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM bars WHERE market = ? AND symbol = ? AND period = ?`,
		string(market), symbol, string(period),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return fromUnix(ts.Int64), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
