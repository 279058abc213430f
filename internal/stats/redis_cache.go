package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const globalStatsKey = "chainagent:stats:global"

// RedisCache keeps the latest global snapshot in Redis so external
// dashboards can read it without hitting this process.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client}
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) StoreGlobal(ctx context.Context, stats *GlobalStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal global stats: %w", err)
	}
	return c.client.Set(ctx, globalStatsKey, data, 0).Err()
}

// LoadGlobal returns the cached snapshot, or nil if none is stored.
func (c *RedisCache) LoadGlobal(ctx context.Context) (*GlobalStats, error) {
	data, err := c.client.Get(ctx, globalStatsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var stats GlobalStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal global stats: %w", err)
	}
	return &stats, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
