package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gaia-magnetics/magclient/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultResultTTL is how long a decoded result stays cached when no TTL is given.
const DefaultResultTTL = 30 * time.Minute

// Cache is the caching interface used by the session server. Implementations
// must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	GetResult(ctx context.Context, jobID string) ([]models.ResultRow, bool, error)
	PutResult(ctx context.Context, jobID string, rows []models.ResultRow) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Close() error
}

// RedisCache implements Cache on go-redis/v9.
type RedisCache struct {
	client    *redis.Client
	resultTTL time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a RedisCache from a Redis URL. A non-positive resultTTL
// selects DefaultResultTTL.
func NewRedisCache(redisURL string, resultTTL time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	return &RedisCache{client: redis.NewClient(opts), resultTTL: resultTTL}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetResult returns the cached rows for jobID. found is false on a miss.
func (c *RedisCache) GetResult(ctx context.Context, jobID string) ([]models.ResultRow, bool, error) {
	val, err := c.client.Get(ctx, ResultKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rows []models.ResultRow
	if err := json.Unmarshal(val, &rows); err != nil {
		return nil, false, fmt.Errorf("decoding cached result %s: %w", jobID, err)
	}
	if rows == nil {
		rows = []models.ResultRow{}
	}
	return rows, true, nil
}

// PutResult stores rows for jobID with the configured TTL. Results of a completed
// job never change, so entries are only refreshed, never invalidated.
func (c *RedisCache) PutResult(ctx context.Context, jobID string, rows []models.ResultRow) error {
	val, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", jobID, err)
	}
	return c.client.Set(ctx, ResultKey(jobID), val, c.resultTTL).Err()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
