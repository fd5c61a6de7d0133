// cmd/detect scans a batch of symbols for DKX or dual-MA crossovers over the
// SQLite bar store, stores new signals and prints them.
//
// Usage:
//
//	go run ./cmd/detect --symbols=600000,000001 --lookback=5
//	go run ./cmd/detect --symbols=FG205 --market=futures --period=30 --indicator=ma --short=5 --long=10
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"signal-monitor/config"
	"signal-monitor/internal/app"
	"signal-monitor/internal/indicator"
	"signal-monitor/internal/logger"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
	"signal-monitor/internal/scanner"
	"signal-monitor/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbols := flag.String("symbols", "", "Comma-separated symbols to scan (required)")
	marketStr := flag.String("market", "stock", "Market: stock or futures")
	periodStr := flag.String("period", "daily", "Bar period: daily, weekly, monthly or minutes")
	ind := flag.String("indicator", "dkx", "Indicator: dkx or ma")
	short := flag.Int("short", 5, "Short MA period (indicator=ma)")
	long := flag.Int("long", 10, "Long MA period (indicator=ma)")
	lookback := flag.Int("lookback", -1, "Only report signals within the last N bars (0=all, default from config)")
	from := flag.String("from", "", "Scan from this bound instead of a lookback")
	to := flag.String("to", "", "Scan up to this bound")
	asJSON := flag.Bool("json", false, "Print the full batch as JSON")
	flag.Parse()

	list := splitSymbols(*symbols)
	if len(list) == 0 {
		log.Fatal("[detect] --symbols is required")
	}
	market, err := model.ParseMarket(*marketStr)
	if err != nil {
		log.Fatalf("[detect] %v", err)
	}
	period, err := model.ParsePeriod(*periodStr)
	if err != nil {
		log.Fatalf("[detect] %v", err)
	}
	cfgInd, err := parseIndicator(*ind, *short, *long)
	if err != nil {
		log.Fatalf("[detect] %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[detect] config: %v", err)
	}
	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.Init("detect", level)
	}

	scope := strategy.Lookback(cfg.DefaultLookback)
	if *lookback >= 0 {
		scope = strategy.Lookback(*lookback)
	}
	if *from != "" || *to != "" {
		start, err := markethours.ParseBound(*from, markethours.CST)
		if err != nil {
			log.Fatalf("[detect] %v", err)
		}
		end, err := markethours.ParseBound(*to, markethours.CST)
		if err != nil {
			log.Fatalf("[detect] %v", err)
		}
		scope = strategy.Between(start, end)
	}

	a, err := app.Open(cfg, nil)
	if err != nil {
		log.Fatalf("[detect] init failed: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	batch, err := a.Scanner().Detect(ctx, scanner.Request{
		Symbols:   list,
		Market:    market,
		Period:    period,
		Scope:     scope,
		Indicator: cfgInd,
	})
	if err != nil {
		log.Fatalf("[detect] %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			log.Fatalf("[detect] encode: %v", err)
		}
		return
	}

	for _, r := range batch.Results {
		if len(r.Signals) == 0 {
			fmt.Printf("%-10s no signal\n", r.Symbol)
			continue
		}
		for _, sig := range r.Signals {
			fast, slow := sig.Values.Pair()
			fmt.Printf("%-10s %s %-4s price=%.2f fast=%.4f slow=%.4f offset=%d\n",
				r.Symbol, sig.TS.Format(model.SignalDateLayout), sig.Direction, sig.Price, fast, slow, sig.Offset)
		}
	}
	for _, f := range batch.Failures {
		fmt.Printf("%-10s failed: %s\n", f.Symbol, f.Error)
	}
}

func parseIndicator(name string, short, long int) (indicator.Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dkx":
		return indicator.DKXConfig(), nil
	case "ma":
		cfg := indicator.MAConfig(short, long)
		return cfg, cfg.Validate()
	}
	return indicator.Config{}, fmt.Errorf("unknown indicator %q", name)
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
