// cmd/backtest runs the DKX crossover backtest for a batch of symbols over
// the SQLite bar store and prints the ranked results.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=FG205,SA205 --market=futures --period=60 --from=2024-01-02 --to=2024-06-28
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
	"signal-monitor/internal/backtest"
	"signal-monitor/internal/indicator"
	"signal-monitor/internal/logger"
	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	symbols := flag.String("symbols", "", "Comma-separated symbols to backtest (required)")
	marketStr := flag.String("market", "stock", "Market: stock or futures")
	periodStr := flag.String("period", "daily", "Bar period: daily, weekly, monthly or minutes (1,5,15,30,60,90,120,180,240)")
	from := flag.String("from", "", "Start bound, e.g. 2024-01-02 or 2024-01-02 09:30")
	to := flag.String("to", "", "End bound")
	capital := flag.Float64("capital", backtest.DefaultInitialCapital, "Initial capital")
	lots := flag.Int("lots", backtest.DefaultLotSize, "Lot size (contracts or shares per trade)")
	maShort := flag.Int("ma-short", 0, "Use a dual MA with this short period instead of DKX")
	maLong := flag.Int("ma-long", 10, "Long period of the dual MA")
	asJSON := flag.Bool("json", false, "Print the full batch as JSON")
	flag.Parse()

	req, err := buildRequest(*symbols, *marketStr, *periodStr, *from, *to)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	req.InitialCapital = *capital
	req.LotSize = *lots
	if *maShort > 0 {
		req.Indicator = indicator.MAConfig(*maShort, *maLong)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[backtest] config: %v", err)
	}
	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.Init("backtest", level)
	}

	a, err := app.Open(cfg, nil)
	if err != nil {
		log.Fatalf("[backtest] init failed: %v", err)
	}
	defer a.Close()

	svc, err := a.Backtester()
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	batch, err := svc.Run(ctx, req)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			log.Fatalf("[backtest] encode: %v", err)
		}
		return
	}
	printBatch(batch)
}

func buildRequest(symbols, marketStr, periodStr, from, to string) (backtest.Request, error) {
	list := splitSymbols(symbols)
	if len(list) == 0 {
		return backtest.Request{}, fmt.Errorf("--symbols is required")
	}
	market, err := model.ParseMarket(marketStr)
	if err != nil {
		return backtest.Request{}, err
	}
	period, err := model.ParsePeriod(periodStr)
	if err != nil {
		return backtest.Request{}, err
	}
	start, err := markethours.ParseBound(from, markethours.CST)
	if err != nil {
		return backtest.Request{}, err
	}
	end, err := markethours.ParseBound(to, markethours.CST)
	if err != nil {
		return backtest.Request{}, err
	}
	return backtest.Request{
		Symbols: list,
		Market:  market,
		Period:  period,
		Start:   start,
		End:     end,
	}, nil
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

func printBatch(b backtest.Batch) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                            BACKTEST COMPLETE                             ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Run: %-66s ║\n", b.RunID)
	fmt.Println("╠══════════╦════════╦══════════════╦══════════╦══════════╦══════════╦═══════╣")
	fmt.Println("║ Symbol   ║ Trades ║ Total profit ║ RoM      ║ PF       ║ Sharpe   ║ MDD   ║")
	fmt.Println("╠══════════╬════════╬══════════════╬══════════╬══════════╬══════════╬═══════╣")
	for _, r := range b.Results {
		s := r.Statistics
		fmt.Printf("║ %-8s ║ %6d ║ %12.2f ║ %8.4f ║ %8.4f ║ %8.4f ║ %5.3f ║\n",
			r.Symbol, s.TotalTrades, s.TotalProfit, s.ReturnOnMargin, s.ProfitFactor, s.SharpeRatio, s.MaxDrawdown)
	}
	fmt.Println("╚══════════╩════════╩══════════════╩══════════╩══════════╩══════════╩═══════╝")
	for _, f := range b.Failures {
		fmt.Printf("  failed %s: %s\n", f.Symbol, f.Error)
	}
}
