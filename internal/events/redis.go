package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catechize/playback/internal/config"
)

const (
	defaultStreamKey     = "catechize:events:pending"
	defaultProcessingKey = "catechize:events:processing"
)

// RedisSink implements Sink and Consumer on a Redis list.
type RedisSink struct {
	client        *redis.Client
	streamKey     string
	processingKey string
}

// NewRedisSink creates a Redis-backed event sink and verifies the connection.
func NewRedisSink(cfg config.RedisConfig) (*RedisSink, error) {
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

	return &RedisSink{
		client:        client,
		streamKey:     defaultStreamKey,
		processingKey: defaultProcessingKey,
	}, nil
}

// Publish appends the event to the pending list.
func (s *RedisSink) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.LPush(ctx, s.streamKey, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Next blocks for up to timeout waiting for the next event and moves it to
// the processing set.
func (s *RedisSink) Next(ctx context.Context, timeout time.Duration) (*Event, error) {
	result, err := s.client.BRPop(ctx, timeout, s.streamKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoEventAvailable
		}
		return nil, fmt.Errorf("failed to pop event: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected brpop result length %d", len(result))
	}
	data := result[1]

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if err := s.client.SAdd(ctx, s.processingKey, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to track processing event: %w", err)
	}

	return &event, nil
}

// Ack acknowledges a consumed event.
func (s *RedisSink) Ack(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.SRem(ctx, s.processingKey, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to ack event: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
