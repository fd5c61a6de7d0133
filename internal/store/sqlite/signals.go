package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"signal-monitor/internal/model"
)

// DefaultHistoryLimit is used when History is called with a non-positive limit.
const DefaultHistoryLimit = 100

// SignalHistory stores detected signals in the signal_history table.
type SignalHistory struct {
	db  *sql.DB
	now func() time.Time
}

// NewSignalHistory creates a signal store on the writer's database.
func NewSignalHistory(w *Writer) *SignalHistory {
	return &SignalHistory{db: w.db, now: time.Now}
}

// SaveSignal stores rec. A signal already stored for the same symbol, date,
// direction and indicator is ignored and reported with inserted=false.
func (h *SignalHistory) SaveSignal(ctx context.Context, rec model.SignalRecord) (bool, error) {
	values, err := json.Marshal(rec.Values)
	if err != nil {
		return false, fmt.Errorf("sqlite encode indicator values: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = h.now()
	}
	res, err := h.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signal_history
		(symbol, market, signal_date, signal_type, price, indicator_type, indicator_values, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Symbol, string(rec.Market), rec.SignalDate, string(rec.Direction), rec.Price,
		string(rec.Indicator), string(values), created.UnixNano())
	if err != nil {
		return false, fmt.Errorf("sqlite insert signal %s: %w", rec.Symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// History returns the most recent signals, newest first.
func (h *SignalHistory) History(ctx context.Context, limit int) ([]model.SignalRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, symbol, market, signal_date, signal_type, price, indicator_type, indicator_values, created_at
		FROM signal_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signal history: %w", err)
	}
	defer rows.Close()

	out := make([]model.SignalRecord, 0)
	for rows.Next() {
		var rec model.SignalRecord
		var market, dir, kind, values string
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Symbol, &market, &rec.SignalDate, &dir, &rec.Price, &kind, &values, &created); err != nil {
			return nil, err
		}
		rec.Market = model.Market(market)
		rec.Direction = model.Direction(dir)
		rec.Indicator = model.IndicatorKind(kind)
		if err := json.Unmarshal([]byte(values), &rec.Values); err != nil {
			return nil, fmt.Errorf("sqlite decode indicator values of signal %d: %w", rec.ID, err)
		}
		rec.CreatedAt = time.Unix(0, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}
