package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"go.uber.org/zap"
)

type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
	}
}

// Do runs operation until it succeeds, retries run out or ctx is done.
func Do(ctx context.Context, log logger.Logger, operationName string, operation func() error, cfg Config) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.Reset()

	retryable := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)

	notify := func(err error, t time.Duration) {
		log.Warn("Operation failed, retrying...",
			zap.String("operation", operationName),
			zap.Error(err),
			zap.String("next_attempt_in", t.Round(time.Millisecond).String()),
		)
	}

	return backoff.RetryNotify(operation, retryable, notify)
}
