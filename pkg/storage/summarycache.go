package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/common/models"
	"github.com/pulsewise/platform/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no analytics view is cached for an owner.
var ErrCacheMiss = errors.New("summary cache miss")

// kv is the subset of the redis client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SummaryCache keeps the analytics view (summary plus latest risk) of each
// owner hot in Redis. The store stays the source of truth.
type SummaryCache struct {
	client kv
	prefix string
	ttl    time.Duration
}

func NewSummaryCache(client kv, prefix string, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *SummaryCache) key(ownerID string) string {
	return fmt.Sprintf("%s%s", c.prefix, ownerID)
}

func (c *SummaryCache) Get(ctx context.Context, ownerID string) (*models.AnalyticsResponse, error) {
	data, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveCacheLookup(false)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var view models.AnalyticsResponse
	if err := json.Unmarshal(data, &view); err != nil {
		logger.Log.WithError(err).WithField("owner_id", ownerID).Warn("dropping undecodable cached summary")
		_ = c.Invalidate(ctx, ownerID)
		metrics.ObserveCacheLookup(false)
		return nil, ErrCacheMiss
	}
	metrics.ObserveCacheLookup(true)
	return &view, nil
}

func (c *SummaryCache) Set(ctx context.Context, ownerID string, view models.AnalyticsResponse) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(ownerID), data, c.ttl).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Del(ctx, c.key(ownerID)).Err()
}
