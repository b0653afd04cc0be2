package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

const redisPriceKey = "stock:%s:price"

// PriceCache stores recent quotes.
type PriceCache interface {
	Get(ctx context.Context, symbol string) (float64, bool)
	Set(ctx context.Context, symbol string, price float64, ttl time.Duration) error
}

// RedisPriceCache keeps quotes in Redis so every instance shares them.
type RedisPriceCache struct {
	rdb *redis.Client
}

func NewRedisPriceCache(rdb *redis.Client) *RedisPriceCache {
	return &RedisPriceCache{rdb: rdb}
}

func (c *RedisPriceCache) Get(ctx context.Context, symbol string) (float64, bool) {
	cached, err := c.rdb.Get(ctx, fmt.Sprintf(redisPriceKey, symbol)).Result()
	if err != nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(cached, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func (c *RedisPriceCache) Set(ctx context.Context, symbol string, price float64, ttl time.Duration) error {
	value := strconv.FormatFloat(price, 'f', -1, 64)
	return c.rdb.Set(ctx, fmt.Sprintf(redisPriceKey, symbol), value, ttl).Err()
}

// MemoryPriceCache keeps quotes in process.
type MemoryPriceCache struct {
	c *cache.Cache
}

func NewMemoryPriceCache(defaultTTL time.Duration) *MemoryPriceCache {
	return &MemoryPriceCache{c: cache.New(defaultTTL, 2*defaultTTL)}
}

func (m *MemoryPriceCache) Get(_ context.Context, symbol string) (float64, bool) {
	v, ok := m.c.Get(symbol)
	if !ok {
		return 0, false
	}
	price, ok := v.(float64)
	return price, ok
}

func (m *MemoryPriceCache) Set(_ context.Context, symbol string, price float64, ttl time.Duration) error {
	m.c.Set(symbol, price, ttl)
	return nil
}

// Layered consults caches in order and backfills the faster ones on a hit in
// a slower one. Writes go to every layer.
type Layered struct {
	caches      []PriceCache
	backfillTTL time.Duration
}

// NewLayered builds a Layered cache. Backfilled entries live for backfillTTL
// since the slower layers do not report their remaining ttl.
func NewLayered(backfillTTL time.Duration, caches ...PriceCache) *Layered {
	return &Layered{caches: caches, backfillTTL: backfillTTL}
}

func (l *Layered) Get(ctx context.Context, symbol string) (float64, bool) {
	for i, c := range l.caches {
		price, ok := c.Get(ctx, symbol)
		if !ok {
			continue
		}
		for _, faster := range l.caches[:i] {
			_ = faster.Set(ctx, symbol, price, l.backfillTTL)
		}
		return price, true
	}
	return 0, false
}

func (l *Layered) Set(ctx context.Context, symbol string, price float64, ttl time.Duration) error {
	var firstErr error
	for _, c := range l.caches {
		if err := c.Set(ctx, symbol, price, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
