// Package workpool runs one job per symbol on a bounded set of workers.
package workpool

import (
	"context"
	"fmt"
	"log"
	"sync"

	"signal-monitor/internal/model"
)

// Job processes one symbol.
type Job[T any] func(ctx context.Context, symbol string) (T, error)

// Run processes every symbol with at most workers concurrent jobs and
// returns one result per symbol, in input order. A job that panics yields
// a failed result for its symbol; the rest of the batch continues. Symbols
// not started before ctx is cancelled fail with ctx.Err().
func Run[T any](ctx context.Context, workers int, symbols []string, job Job[T]) []model.Result[T] {
	results := make([]model.Result[T], len(symbols))
	if len(symbols) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	jobs := make(chan int, len(symbols))
	for i := range symbols {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range jobs {
				results[i] = runOne(ctx, id, symbols[i], job)
			}
		}(w)
	}
	wg.Wait()
	return results
}

func runOne[T any](ctx context.Context, worker int, symbol string, job Job[T]) (res model.Result[T]) {
	res.Symbol = symbol
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[workpool] worker %d: job for %s panicked: %v", worker, symbol, r)
			res.Err = fmt.Errorf("workpool: %s: panic: %v", symbol, r)
		}
	}()
	v, err := job(ctx, symbol)
	if err != nil {
		res.Err = err
		return res
	}
	res.Value = v
	return res
}
