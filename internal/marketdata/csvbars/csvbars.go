// Package csvbars reads OHLCV bar files: date,open,high,low,close,volume
// with an optional trailing open interest ("hold") column. A header row is
// skipped when present.
package csvbars

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"signal-monitor/internal/model"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
}

// Read parses every row of r into bars, reading dates as wall clock in loc.
// The result is ordered and deduplicated by timestamp.
func Read(r io.Reader, loc *time.Location) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csvbars: line %d: %w", line, err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		b, err := parseRow(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("csvbars: line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	s := model.BarSeries{Bars: bars}.Normalize()
	return s.Bars, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "date")
}

func parseRow(rec []string, loc *time.Location) (model.Bar, error) {
	if len(rec) < 6 {
		return model.Bar{}, fmt.Errorf("want at least 6 columns, got %d", len(rec))
	}
	ts, err := parseDate(rec[0], loc)
	if err != nil {
		return model.Bar{}, err
	}
	var v [5]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
	}
	b := model.Bar{TS: ts, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}
	if len(rec) > 6 && strings.TrimSpace(rec[6]) != "" {
		oi, err := strconv.ParseFloat(strings.TrimSpace(rec[6]), 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("hold column: %w", err)
		}
		b.OpenInterest = model.OI(oi)
	}
	if !b.Valid() {
		return model.Bar{}, fmt.Errorf("non-finite value in %v", rec)
	}
	return b, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
