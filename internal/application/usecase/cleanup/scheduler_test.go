package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/metrics"
)

type runnerFunc func(ctx context.Context) (*RunReport, error)

func (f runnerFunc) Execute(ctx context.Context) (*RunReport, error) { return f(ctx) }

func newTestScheduler(t *testing.T, r Runner) (*Scheduler, *RunGuard, *metrics.Cleanup) {
	t.Helper()
	guard := NewRunGuard()
	m := metrics.NewCleanup()
	s, err := NewScheduler(r, guard, SchedulerConfig{Timezone: "Asia/Ho_Chi_Minh"}, testclock.NewClock(t0), m, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, guard, m
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	s, guard, m := newTestScheduler(t, runnerFunc(func(ctx context.Context) (*RunReport, error) {
		calls++
		close(entered)
		<-release
		return &RunReport{}, nil
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ran, err := s.Trigger(context.Background())
		assert.True(t, ran)
		assert.NoError(t, err)
	}()
	<-entered
	assert.True(t, guard.Running())

	report, ran, err := s.Trigger(context.Background())
	assert.False(t, ran)
	assert.Nil(t, report)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedTriggers))

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never finished")
	}
	assert.False(t, guard.Running())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
}

func TestTriggerReleasesGuardOnError(t *testing.T) {
	s, guard, m := newTestScheduler(t, runnerFunc(func(ctx context.Context) (*RunReport, error) {
		return nil, errors.New("list expired stories: timeout")
	}))

	_, ran, err := s.Trigger(context.Background())
	assert.True(t, ran)
	assert.Error(t, err)
	assert.False(t, guard.Running())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("error")))

	_, ran, _ = s.Trigger(context.Background())
	assert.True(t, ran, "next trigger proceeds normally")
}

func TestTriggerRecoversPanic(t *testing.T) {
	s, guard, _ := newTestScheduler(t, runnerFunc(func(ctx context.Context) (*RunReport, error) {
		panic("nil map")
	}))

	report, ran, err := s.Trigger(context.Background())
	assert.True(t, ran)
	assert.Nil(t, report)
	assert.ErrorContains(t, err, "nil map")
	assert.False(t, guard.Running())
}

func TestSchedulerStartRejectsBadSchedule(t *testing.T) {
	guard := NewRunGuard()
	s, err := NewScheduler(runnerFunc(func(ctx context.Context) (*RunReport, error) { return &RunReport{}, nil }),
		guard, SchedulerConfig{Schedule: "every now and then"}, testclock.NewClock(t0), metrics.NewCleanup(), logger.NewNop())
	require.NoError(t, err)
	defer s.Shutdown()

	assert.Error(t, s.Start(context.Background()))
}

func TestRunGuard(t *testing.T) {
	g := NewRunGuard()
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())
	g.Release()
	assert.True(t, g.TryAcquire())
}
