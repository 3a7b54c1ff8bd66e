package media_storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

func TestDurationOf(t *testing.T) {
	d := durationOf(map[string]any{"duration": 12.4, "format": "mp4"})
	require.NotNil(t, d)
	assert.InDelta(t, 12.4, *d, 1e-9)

	assert.Nil(t, durationOf(map[string]any{"format": "jpg"}))
	assert.Nil(t, durationOf(nil))
	assert.Nil(t, durationOf("not a map"))
}

func TestNewCloudinaryAdapterRequiresCloudName(t *testing.T) {
	_, err := NewCloudinaryAdapter(config.Config{}, logger.NewNop())
	assert.Error(t, err)
}
