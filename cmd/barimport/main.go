// cmd/barimport loads OHLCV CSV files into the SQLite bar store.
//
// Each file holds one symbol: date,open,high,low,close,volume[,hold].
// The symbol defaults to the file name without extension.
//
// Usage:
//
//	go run ./cmd/barimport --market=futures --period=30 data/csv/FG205.csv data/csv/SA205.csv
//	go run ./cmd/barimport --symbol=600000 --name="SPD Bank" data/600000.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"signal-monitor/config"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/marketdata/csvbars"
	"signal-monitor/internal/model"
	sqlitestore "signal-monitor/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	marketStr := flag.String("market", "stock", "Market: stock or futures")
	periodStr := flag.String("period", "daily", "Bar period of the files")
	symbolFlag := flag.String("symbol", "", "Symbol (only with a single file; default: file name)")
	name := flag.String("name", "", "Display name stored in the symbol table")
	dbPath := flag.String("db", "", "SQLite path (default: SQLITE_PATH from config)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("[barimport] no CSV files given")
	}
	if *symbolFlag != "" && len(files) > 1 {
		log.Fatal("[barimport] --symbol needs exactly one file")
	}
	market, err := model.ParseMarket(*marketStr)
	if err != nil {
		log.Fatalf("[barimport] %v", err)
	}
	period, err := model.ParsePeriod(*periodStr)
	if err != nil {
		log.Fatalf("[barimport] %v", err)
	}

	path := *dbPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("[barimport] config: %v", err)
		}
		path = cfg.SQLitePath
	}
	if dir := filepath.Dir(path); dir != "" {
		os.MkdirAll(dir, 0o755)
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: path})
	if err != nil {
		log.Fatalf("[barimport] sqlite init failed: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	rows := make(chan sqlitestore.BarRow, 5000)
	done := make(chan int, 1)
	go func() { done <- w.RunBars(ctx, rows) }()

	total := 0
	for _, file := range files {
		symbol := *symbolFlag
		if symbol == "" {
			symbol = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		n, err := importFile(file, symbol, market, period, rows)
		if err != nil {
			log.Printf("[barimport] %s: %v", file, err)
			continue
		}
		display := *name
		if display == "" {
			display = symbol
		}
		if err := w.UpsertSymbol(ctx, model.SymbolInfo{Symbol: symbol, Name: display, Market: market}); err != nil {
			log.Printf("[barimport] %s: symbol table: %v", symbol, err)
		}
		log.Printf("[barimport] %s: queued %d bars", symbol, n)
		total += n
	}
	close(rows)
	committed := <-done

	fmt.Printf("imported %d/%d bars from %d files into %s\n", committed, total, len(files), path)
}

func importFile(file, symbol string, market model.Market, period model.Period, rows chan<- sqlitestore.BarRow) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bars, err := csvbars.Read(f, markethours.CST)
	if err != nil {
		return 0, err
	}
	for _, b := range bars {
		rows <- sqlitestore.BarRow{Symbol: symbol, Market: market, Period: period, Bar: b}
	}
	return len(bars), nil
}
