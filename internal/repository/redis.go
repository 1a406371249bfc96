package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/biscalabs/biscagate/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	keyLastRandomEvent = "treasury:last_random_event"
	keyHandledPrefix   = "treasury:handled:"
)

// RedisClient backs the treasury StateStore so the cooldown clock and the
// handled-request set survive restarts.
type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// Implement treasury.StateStore

func (r *RedisClient) LastRandomEvent(ctx context.Context) (time.Time, error) {
	val, err := r.Client.Get(ctx, keyLastRandomEvent).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(val, 0), nil
}

func (r *RedisClient) SetLastRandomEvent(ctx context.Context, t time.Time) error {
	return r.Client.Set(ctx, keyLastRandomEvent, t.Unix(), 0).Err()
}

func (r *RedisClient) Handled(ctx context.Context, requestID string) (bool, error) {
	n, err := r.Client.Exists(ctx, keyHandledPrefix+requestID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisClient) MarkHandled(ctx context.Context, requestID string) error {
	return r.Client.Set(ctx, keyHandledPrefix+requestID, 1, 0).Err()
}
