package tracing

import (
	"context"
	"testing"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestNewTracerProviderDisabledWithoutEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(config.Config{}, logger.NewNop(), "stories-api")
	assert.NoError(t, err)
	assert.Nil(t, tp)

	Shutdown(context.Background(), tp, logger.NewNop())
}
