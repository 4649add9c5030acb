package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/videocampaign/internal/domain"
)

// Cache stores computed stats in Redis as JSON with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a cache over client. A non-positive ttl means 30s.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(campaignID string) string {
	return "stats:campaign:" + campaignID
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	key := cacheKey(campaignID)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var s domain.CampaignStats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	return &s, nil
}

func (c *Cache) Set(ctx context.Context, s *domain.CampaignStats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	key := cacheKey(s.CampaignID)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, campaignID string) error {
	key := cacheKey(campaignID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}
