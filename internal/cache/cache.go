package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is a JSON cache on top of Redis. A Cache built without a client is
// disabled: reads always miss and writes are dropped.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return &Cache{}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get decodes the value stored under key into result. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, key string, result interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}

	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

func RestaurantLocationKey(restaurantID uint) string {
	return fmt.Sprintf("restaurant:location:%d", restaurantID)
}

const CategoriesKey = "catalog:categories"
