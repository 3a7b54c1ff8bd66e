package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/metrics"
)

const DefaultSchedule = "*/5 * * * *"

type Runner interface {
	Execute(ctx context.Context) (*RunReport, error)
}

type SchedulerConfig struct {
	Schedule string
	Timezone string
}

// Scheduler fires the cleanup runner on a cron schedule.
type Scheduler struct {
	runner  Runner
	guard   *RunGuard
	clock   clock.Clock
	metrics *metrics.Cleanup
	logger  logger.Logger
	spec    string
	sched   gocron.Scheduler
}

func NewScheduler(runner Runner, guard *RunGuard, cfg SchedulerConfig, clk clock.Clock, m *metrics.Cleanup, log logger.Logger) (*Scheduler, error) {
	log = log.With(zap.String("component", "story_cleanup_scheduler"))

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn("Failed to load cleanup timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		} else {
			loc = l
		}
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	spec := cfg.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	return &Scheduler{
		runner:  runner,
		guard:   guard,
		clock:   clk,
		metrics: m,
		logger:  log,
		spec:    spec,
		sched:   sched,
	}, nil
}

// Start registers the cron job and starts the scheduler. Runs use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.CronJob(s.spec, false),
		gocron.NewTask(func() {
			s.Trigger(ctx)
		}),
		gocron.WithName("story-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule story cleanup: %w", err)
	}

	s.sched.Start()
	s.logger.Info("Story cleanup scheduled", zap.String("schedule", s.spec))
	return nil
}

// Trigger runs the cleanup once unless a run is already in flight, in which
// case it returns ran=false. Panics in the runner are turned into errors.
func (s *Scheduler) Trigger(ctx context.Context) (report *RunReport, ran bool, err error) {
	if !s.guard.TryAcquire() {
		s.metrics.SkippedTriggers.Inc()
		s.logger.Warn("Story cleanup still running, skipping trigger")
		return nil, false, nil
	}
	defer s.guard.Release()
	ran = true

	start := s.clock.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("story cleanup panicked: %v", rec)
			report = nil
		}
		s.metrics.RunDuration.Observe(s.clock.Now().Sub(start).Seconds())
		if err != nil {
			s.metrics.Runs.WithLabelValues("error").Inc()
			s.logger.Error("Story cleanup run aborted", err)
			return
		}
		s.metrics.Runs.WithLabelValues("ok").Inc()
	}()

	report, err = s.runner.Execute(ctx)
	return report, ran, err
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
