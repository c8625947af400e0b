package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/mailmerge/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mailmerge:doc:"

// RedisBackend stores each document as a plain string value.
type RedisBackend struct {
	client *redis.Client
}

// OpenRedis parses url (falling back to a bare address) and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("storage: redis_url is required for redis storage")
	}
	var client *redis.Client
	opts, err := redis.ParseURL(url)
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: url})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// NewRedisBackend creates a RedisBackend over client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *RedisBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
