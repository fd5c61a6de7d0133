package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"signal-monitor/internal/model"
)

// signalStreamMaxLen caps each per-symbol signal stream.
const signalStreamMaxLen = 1000

// SignalPublisher fans detected signals out to Redis: a PUBLISH on the
// indicator's channel for live subscribers and an XADD onto the symbol's
// capped stream for late readers.
type SignalPublisher struct {
	rdb     *goredis.Client
	breaker *CircuitBreaker
}

// NewSignalPublisher creates a publisher. A nil client makes PublishSignal a no-op.
func NewSignalPublisher(rdb *goredis.Client, breaker *CircuitBreaker) *SignalPublisher {
	return &SignalPublisher{rdb: rdb, breaker: breaker}
}

// SignalChannel is the pubsub channel for an indicator family.
func SignalChannel(kind model.IndicatorKind) string {
	return "pub:signal:" + string(kind)
}

// SignalStream is the stream key for one symbol's signals.
func SignalStream(kind model.IndicatorKind, symbol string) string {
	return "signal:" + string(kind) + ":" + symbol
}

// PublishSignal publishes rec in one pipeline.
func (p *SignalPublisher) PublishSignal(ctx context.Context, rec model.SignalRecord) error {
	if p.rdb == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis encode signal: %w", err)
	}
	jsonData := string(data)

	return p.breaker.Execute(func() error {
		pipe := p.rdb.Pipeline()
		pipe.Publish(ctx, SignalChannel(rec.Indicator), jsonData)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: SignalStream(rec.Indicator, rec.Symbol),
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis publish signal %s: %w", rec.Symbol, err)
		}
		return nil
	})
}
