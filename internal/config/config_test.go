package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Cleanup.Enabled)
	assert.False(t, cfg.Cleanup.Strict)
	assert.Equal(t, "*/5 * * * *", cfg.Cleanup.Schedule)
	assert.Equal(t, "UTC", cfg.Cleanup.Timezone)
	assert.Equal(t, 5, cfg.Cleanup.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Cleanup.RetryBase())
	assert.Equal(t, 24*time.Hour, cfg.Cleanup.RetryMax())
	assert.Equal(t, 200, cfg.Cleanup.RetryBatch)
	assert.Equal(t, 30*time.Second, cfg.Cloudinary.Timeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORY_CLEANUP_STRICT", "true")
	t.Setenv("STORY_DELETION_ATTEMPTS", "8")
	t.Setenv("STORY_RETRY_BASE_MINUTES", "1")
	t.Setenv("CRON_TZ", "Asia/Ho_Chi_Minh")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Cleanup.Strict)
	assert.Equal(t, 8, cfg.Cleanup.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Cleanup.RetryBase())
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Cleanup.Timezone)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadConfigFallsBackOnInvalidRetrySettings(t *testing.T) {
	for _, attempts := range []string{"0", "-3"} {
		t.Run(attempts, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("STORY_DELETION_ATTEMPTS", attempts)
			t.Setenv("STORY_RETRY_BASE_MINUTES", "0")
			t.Setenv("STORY_RETRY_MAX_MINUTES", "-1")

			cfg, err := LoadConfig()
			require.NoError(t, err)

			assert.Equal(t, 5, cfg.Cleanup.MaxAttempts)
			assert.Equal(t, 5*time.Minute, cfg.Cleanup.RetryBase())
			assert.Equal(t, 24*time.Hour, cfg.Cleanup.RetryMax())
		})
	}
}

func TestLoadConfigOperatorIDs(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_OPERATOR_IDS", "11111111-1111-1111-1111-111111111111, 22222222-2222-2222-2222-222222222222")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	}, cfg.Admin.OperatorIDs)
}
