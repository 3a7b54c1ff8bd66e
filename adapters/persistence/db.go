package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/retry"
)

func NewPostgresPool(ctx context.Context, cfg config.Config, log logger.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("do not create connection pool: %w", err)
	}

	err = retry.Do(ctx, log, "postgres ping", func() error {
		return pool.Ping(ctx)
	}, retry.DefaultConfig())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database failed: %w", err)
	}

	log.Info("Connect PostgreSQL successfully.")
	return pool, nil
}
