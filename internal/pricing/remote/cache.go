package remote

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
)

// CachedFetcher keeps non-empty remote answers in Redis for ttl. Redis
// failures are logged and bypassed; they never fail a fetch.
type CachedFetcher struct {
	next   Fetcher
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewCachedFetcher(next Fetcher, rdb *redis.Client, ttl time.Duration, prefix string, log logger.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		prefix: prefix,
		logger: log,
	}
}

func (c *CachedFetcher) FetchRecords(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error) {
	key := c.cacheKey(f, day)

	if records, ok := c.get(ctx, key); ok {
		metrics.RemoteFetches.WithLabelValues("cache_hit").Inc()
		return records, nil
	}

	records, err := c.next.FetchRecords(ctx, f, day)
	if err != nil || len(records) == 0 {
		return records, err
	}

	c.set(ctx, key, records)
	return records, nil
}

func (c *CachedFetcher) cacheKey(f models.Filter, day time.Time) string {
	return c.prefix + models.Day(day).Format("2006-01-02") + ":" + f.Key()
}

func (c *CachedFetcher) get(ctx context.Context, key string) ([]models.PriceRecord, bool) {
	cached, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.warn("Remote cache read failed", key, err)
		}
		return nil, false
	}

	var records []models.PriceRecord
	if err := json.Unmarshal([]byte(cached), &records); err != nil {
		c.logger.Warn("Discarding unreadable remote cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return records, true
}

func (c *CachedFetcher) set(ctx context.Context, key string, records []models.PriceRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.warn("Remote cache write failed", key, err)
	}
}

func (c *CachedFetcher) warn(msg, key string, err error) {
	cacheErr := errors.NewCacheUnavailableError(err)
	c.logger.WithError(cacheErr).Warn(msg, map[string]interface{}{
		"key":  key,
		"code": string(cacheErr.Code),
	})
}
