// Package redis holds the optional Redis integrations: a contract cache in
// front of the contract repository and a signal publisher. Both degrade to
// no-ops (or pass-through) when Redis is unconfigured or unhealthy.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-monitor/internal/metrics"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Connect creates a Redis client and pings the server.
func Connect(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}

// NewBreaker creates the circuit breaker shared by the Redis integrations
// and reports its transitions to m (which may be nil).
func NewBreaker(m *metrics.Metrics) *CircuitBreaker {
	cb := NewCircuitBreaker("redis", 5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] %s breaker %s -> %s (rejected so far: %d)", cb.Name, from, to, cb.rejected)
		m.BreakerState(int(to), to == StateOpen)
	}
	return cb
}
