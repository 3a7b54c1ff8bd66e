package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCleanup()
	h := NewHTTP()
	require.NoError(t, reg.Register(c))
	require.NoError(t, reg.Register(h))

	c.Runs.WithLabelValues("ok").Inc()
	c.StoriesRemoved.Add(3)
	c.StuckDeletions.Set(2)
	h.Requests.WithLabelValues("GET", "/api/v1/stories/tray", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.StoriesRemoved))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.StuckDeletions))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
