package persistence

import (
	"context"
	"fmt"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/retry"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(ctx context.Context, cfg config.Config, log logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})

	err := retry.Do(ctx, log, "redis ping", func() error {
		return rdb.Ping(ctx).Err()
	}, retry.DefaultConfig())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("can not connect Redis: %w", err)
	}

	log.Info("Connect Redis successfully.")
	return rdb, nil
}
