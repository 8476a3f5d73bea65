package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const rateKeyPrefix = "timetutor:rate:"

// RateCacheClient подмножество redis.Cmdable, которое использует кеш
type RateCacheClient interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RateCache read-through кеш ставок в Redis поверх другого RateLookup.
// Ошибки Redis не мешают чтению: запрос уходит в источник.
type RateCache struct {
	next   RateLookup
	client RateCacheClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewRateCache(next RateLookup, client RateCacheClient, ttl time.Duration, logger *zap.Logger) *RateCache {
	return &RateCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func rateKey(categoryID string) string {
	return rateKeyPrefix + categoryID
}

// Rates отдаёт ставки из кеша, недостающие дочитывает из источника
func (c *RateCache) Rates(ctx context.Context, categoryIDs []string) (map[string]decimal.Decimal, error) {
	if len(categoryIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	keys := make([]string, len(categoryIDs))
	for i, id := range categoryIDs {
		keys[i] = rateKey(id)
	}

	rates := make(map[string]decimal.Decimal, len(categoryIDs))
	var misses []string

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Rate cache read failed", zap.Error(err))
		misses = categoryIDs
	} else {
		for i, id := range categoryIDs {
			s, ok := values[i].(string)
			if !ok {
				misses = append(misses, id)
				continue
			}
			rate, err := decimal.NewFromString(s)
			if err != nil {
				misses = append(misses, id)
				continue
			}
			rates[id] = rate
		}
	}

	if len(misses) == 0 {
		return rates, nil
	}

	fresh, err := c.next.Rates(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, rate := range fresh {
		rates[id] = rate
		if err := c.client.Set(ctx, rateKey(id), rate.String(), c.ttl).Err(); err != nil {
			c.logger.Warn("Rate cache write failed", zap.String("category_id", id), zap.Error(err))
		}
	}

	return rates, nil
}

// Invalidate сбрасывает закешированные ставки
func (c *RateCache) Invalidate(ctx context.Context, categoryIDs ...string) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	keys := make([]string, len(categoryIDs))
	for i, id := range categoryIDs {
		keys[i] = rateKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
