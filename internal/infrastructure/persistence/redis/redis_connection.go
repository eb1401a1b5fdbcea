// Package redis provides the Redis client used by the remote cache tier.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/pkg/logger"
)

// NewClient creates a Redis client from config and verifies connectivity.
// A failed ping is returned to the caller, who decides whether to run
// without the remote cache tier.
func NewClient(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr, err)
	}

	log.Info(ctx, "redis connection established",
		logger.String("addr", cfg.Addr),
		logger.Int("db", cfg.DB))
	return client, nil
}
