package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"obra-data/internal/common/config"
)

// NewRedisClient builds a client sized and timed from cfg. It does not dial
// until first use; call Ping to fail fast.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return redis.NewClient(opts)
}

// Ping reports whether the server behind client answers.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", client.Options().Addr, err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
