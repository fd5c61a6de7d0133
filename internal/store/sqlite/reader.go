package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
)

// MaxSearchResults caps a symbol search.
const MaxSearchResults = 50

// Reader provides read-only access to the bar store and symbol table.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// fromUnix maps a stored timestamp back to exchange wall clock.
func fromUnix(ts int64) time.Time {
	return time.Unix(ts, 0).In(markethours.CST)
}

// FetchBars reads the bars of one series ordered by timestamp ascending.
// Zero q.Start / q.End leave that side open. An unknown series yields an
// empty series.
func (r *Reader) FetchBars(ctx context.Context, q model.BarQuery) (model.BarSeries, error) {
	query := `
		SELECT ts, open, high, low, close, volume, open_interest
		FROM bars
		WHERE market = ? AND symbol = ? AND period = ?`
	args := []any{string(q.Market), q.Symbol, string(q.Period)}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.Unix())
	}
	query += ` ORDER BY ts ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	s := model.BarSeries{Symbol: q.Symbol, Period: q.Period}
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		var oi sql.NullFloat64
		if err := rows.Scan(&tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &oi); err != nil {
			return model.BarSeries{}, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = fromUnix(tsUnix)
		if oi.Valid {
			b.OpenInterest = model.OI(oi.Float64)
		}
		s.Bars = append(s.Bars, b)
	}
	return s, rows.Err()
}

// SearchSymbols returns up to MaxSearchResults symbols of market whose code
// or name contains q, case-insensitively. An empty q lists symbols.
func (r *Reader) SearchSymbols(ctx context.Context, q string, market model.Market) ([]model.SymbolInfo, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, name, market FROM symbols
		WHERE market = ? AND (LOWER(symbol) LIKE ? OR LOWER(name) LIKE ?)
		ORDER BY symbol
		LIMIT ?`, string(market), pattern, pattern, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("sqlite search symbols: %w", err)
	}
	defer rows.Close()

	out := make([]model.SymbolInfo, 0)
	for rows.Next() {
		var info model.SymbolInfo
		var m string
		if err := rows.Scan(&info.Symbol, &info.Name, &m); err != nil {
			return nil, err
		}
		info.Market = model.Market(m)
		out = append(out, info)
	}
	return out, rows.Err()
}

// SymbolName returns the display name of a symbol, or ErrSymbolNotFound.
func (r *Reader) SymbolName(ctx context.Context, market model.Market, symbol string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM symbols WHERE market = ? AND symbol = ?`, string(market), symbol).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", model.ErrSymbolNotFound, symbol)
	}
	return name, err
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
