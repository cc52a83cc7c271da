// Package rediskv backs the progress store with Redis: one string key per
// partition.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catechize/playback/internal/config"
)

// Client implements progress.Storage on Redis strings.
type Client struct {
	client *redis.Client
	prefix string
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg config.RedisConfig, prefix string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client, prefix: prefix}, nil
}

func (c *Client) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Read returns the stored bytes, or (nil, nil) when the key is absent.
func (c *Client) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the stored bytes. No TTL: progress survives until cleared.
func (c *Client) Write(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, c.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
