package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
)

// DefaultContractTTL is used when the cache is created with a non-positive TTL.
const DefaultContractTTL = 10 * time.Minute

// CachingContractRepository decorates a ContractRepository with a Redis
// cache keyed by market and product code. A nil client or an open breaker
// bypasses the cache; cache errors never fail a lookup.
type CachingContractRepository struct {
	inner   model.ContractRepository
	rdb     *goredis.Client
	ttl     time.Duration
	breaker *CircuitBreaker
	metrics *metrics.Metrics
}

// NewCachingContractRepository wraps inner. rdb, breaker and m may be nil.
func NewCachingContractRepository(rdb *goredis.Client, ttl time.Duration, inner model.ContractRepository, breaker *CircuitBreaker, m *metrics.Metrics) *CachingContractRepository {
	if ttl <= 0 {
		ttl = DefaultContractTTL
	}
	return &CachingContractRepository{inner: inner, rdb: rdb, ttl: ttl, breaker: breaker, metrics: m}
}

// ContractKey returns the cache key of a symbol's contract. Futures
// contracts share an entry per product code.
func ContractKey(market model.Market, symbol string) string {
	code := strings.ToUpper(strings.TrimSpace(symbol))
	if market == model.MarketFutures {
		code = model.ContractCode(symbol)
	}
	return "contract:" + string(market) + ":" + code
}

// GetContract returns the cached contract for symbol, loading it from the
// inner repository on a miss.
func (c *CachingContractRepository) GetContract(ctx context.Context, market model.Market, symbol string) (model.ContractInfo, error) {
	if c.rdb == nil {
		c.metrics.ContractLookup("bypass")
		return c.inner.GetContract(ctx, market, symbol)
	}

	key := ContractKey(market, symbol)
	var cached []byte
	err := c.breaker.Execute(func() error {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		cached = b
		return err
	})

	switch {
	case errors.Is(err, ErrCircuitOpen):
		c.metrics.ContractLookup("bypass")
		return c.inner.GetContract(ctx, market, symbol)
	case err != nil:
		log.Printf("[redis] contract cache read %s: %v", key, err)
	case len(cached) > 0:
		var info model.ContractInfo
		if err := json.Unmarshal(cached, &info); err == nil {
			c.metrics.ContractLookup("hit")
			info.Symbol = symbol
			return info, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	c.metrics.ContractLookup("miss")
	info, err := c.inner.GetContract(ctx, market, symbol)
	if err != nil {
		return model.ContractInfo{}, err
	}
	if b, err := json.Marshal(info); err == nil {
		_ = c.breaker.Execute(func() error {
			return c.rdb.Set(ctx, key, b, c.ttl).Err()
		})
	}
	return info, nil
}
