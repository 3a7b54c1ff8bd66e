package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/domain/deletion"
	"github.com/khoahotran/stories-backend/internal/domain/media"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/metrics"
)

var tracer = otel.Tracer("usecase/cleanup")

const DefaultRetryBatch = 200

type Policy struct {
	// Strict keeps an expired story while any of its media still has a
	// ledger row.
	Strict     bool
	Retry      deletion.RetryPolicy
	RetryBatch int
}

type RunReport struct {
	Expired        int
	Removed        int64
	Retained       int
	Deleted        int
	Enqueued       int
	Retried        int
	RetrySucceeded int
	Stuck          int64
}

type ReclaimUseCase struct {
	storyRepo story.Repository
	viewRepo  storyview.Repository
	ledger    deletion.Ledger
	store     service.MediaStore
	publisher service.EventPublisher
	clock     clock.Clock
	metrics   *metrics.Cleanup
	logger    logger.Logger
	policy    Policy
}

func NewReclaimUseCase(
	r story.Repository,
	v storyview.Repository,
	l deletion.Ledger,
	s service.MediaStore,
	p service.EventPublisher,
	clk clock.Clock,
	m *metrics.Cleanup,
	log logger.Logger,
	policy Policy,
) *ReclaimUseCase {
	if policy.RetryBatch <= 0 {
		policy.RetryBatch = DefaultRetryBatch
	}
	policy.Retry = policy.Retry.WithDefaults()
	return &ReclaimUseCase{
		storyRepo: r,
		viewRepo:  v,
		ledger:    l,
		store:     s,
		publisher: p,
		clock:     clk,
		metrics:   m,
		logger:    log.With(zap.String("component", "story_cleanup")),
		policy:    policy,
	}
}

// run holds the bookkeeping of one Execute call.
type run struct {
	now       time.Time
	attempted map[string]struct{}
	failed    map[string]struct{}
	report    *RunReport
}

// Execute deletes the media of expired stories, retries due ledger rows and
// removes the expired stories the policy allows. Per-media failures are
// recorded in the ledger and never returned.
func (uc *ReclaimUseCase) Execute(ctx context.Context) (*RunReport, error) {
	ctx, span := tracer.Start(ctx, "ReclaimExpiredStories", trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Bool("strict", uc.policy.Strict)))
	defer span.End()

	r := &run{
		now:       uc.clock.Now().UTC(),
		attempted: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
		report:    &RunReport{},
	}

	expired, err := uc.storyRepo.ListExpired(ctx, r.now)
	if err != nil {
		return nil, fmt.Errorf("list expired stories: %w", err)
	}
	r.report.Expired = len(expired)

	var publicIDs []string
	for _, s := range expired {
		publicIDs = append(publicIDs, s.PublicIDs()...)
	}
	known, err := uc.ledger.FindByPublicIDs(ctx, publicIDs)
	if err != nil {
		return nil, fmt.Errorf("load ledger rows: %w", err)
	}

	for _, s := range expired {
		storyID := s.ID
		for _, m := range s.Medias {
			if m.PublicID == "" {
				continue
			}
			if _, ok := r.attempted[m.PublicID]; ok {
				continue
			}
			// a retained story keeps its media on the ledger schedule
			if row, ok := known[m.PublicID]; ok && !row.Due(r.now, uc.policy.Retry) {
				continue
			}
			r.attempted[m.PublicID] = struct{}{}
			if !uc.reclaimMedia(ctx, r, m.PublicID, &storyID, m.Type) {
				r.report.Enqueued++
			}
		}
	}

	if err := uc.retryDue(ctx, r); err != nil {
		return nil, err
	}

	removable, err := uc.removable(ctx, r, expired)
	if err != nil {
		return nil, err
	}
	if err := uc.remove(ctx, r, removable); err != nil {
		return nil, err
	}

	if stuck, err := uc.ledger.CountStuck(ctx, uc.policy.Retry.MaxAttempts); err != nil {
		uc.logger.Warn("Failed to count stuck deletions", zap.Error(err))
	} else {
		r.report.Stuck = stuck
		uc.metrics.StuckDeletions.Set(float64(stuck))
	}

	uc.metrics.Enqueued.Add(float64(r.report.Enqueued))
	uc.metrics.Retried.Add(float64(r.report.Retried))
	uc.metrics.RetrySucceeded.Add(float64(r.report.RetrySucceeded))
	uc.metrics.StoriesRemoved.Add(float64(r.report.Removed))
	uc.metrics.StoriesRetained.Add(float64(r.report.Retained))

	span.SetAttributes(
		attribute.Int("expired", r.report.Expired),
		attribute.Int64("removed", r.report.Removed),
		attribute.Int("enqueued", r.report.Enqueued),
	)
	uc.logger.Info("Story cleanup run finished",
		zap.Int("expired", r.report.Expired),
		zap.Int64("removed", r.report.Removed),
		zap.Int("retained", r.report.Retained),
		zap.Int("media_deleted", r.report.Deleted),
		zap.Int("enqueued", r.report.Enqueued),
		zap.Int("retried", r.report.Retried),
		zap.Int("retry_succeeded", r.report.RetrySucceeded),
		zap.Int64("stuck", r.report.Stuck),
		zap.Bool("strict", uc.policy.Strict),
	)
	return r.report, nil
}

func (uc *ReclaimUseCase) retryDue(ctx context.Context, r *run) error {
	exclude := make([]string, 0, len(r.attempted))
	for id := range r.attempted {
		exclude = append(exclude, id)
	}
	due, err := uc.ledger.ListDue(ctx, r.now, uc.policy.Retry.MaxAttempts, uc.policy.RetryBatch, exclude)
	if err != nil {
		return fmt.Errorf("list due deletions: %w", err)
	}
	for _, row := range due {
		r.attempted[row.PublicID] = struct{}{}
		r.report.Retried++
		if uc.reclaimMedia(ctx, r, row.PublicID, row.StoryID, row.ResourceType) {
			r.report.RetrySucceeded++
		}
	}
	return nil
}

// reclaimMedia destroys one object and reconciles its ledger row. It reports
// whether the object is gone from the store.
func (uc *ReclaimUseCase) reclaimMedia(ctx context.Context, r *run, publicID string, storyID *uuid.UUID, kind media.Type) bool {
	outcome, err := uc.store.Destroy(ctx, publicID, kind)
	if err == nil && outcome.Succeeded() {
		r.report.Deleted++
		if err := uc.ledger.DeleteByPublicID(ctx, publicID); err != nil {
			uc.logger.Warn("Failed to clear ledger row after deletion", zap.String("public_id", publicID), zap.Error(err))
		}
		return true
	}

	cause := fmt.Sprintf("unexpected destroy result %q", outcome.Result)
	if err != nil {
		cause = err.Error()
	}
	r.failed[publicID] = struct{}{}
	uc.recordFailure(ctx, r, publicID, storyID, kind, cause)
	return false
}

func (uc *ReclaimUseCase) recordFailure(ctx context.Context, r *run, publicID string, storyID *uuid.UUID, kind media.Type, cause string) {
	l := uc.logger.With(zap.String("public_id", publicID), zap.String("cause", deletion.TruncateError(cause)))

	entry, err := uc.ledger.FindByPublicID(ctx, publicID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		entry = deletion.NewFailure(publicID, storyID, kind, cause, r.now, uc.policy.Retry)
	case err != nil:
		l.Error("Failed to read ledger row, deletion failure not recorded", err)
		return
	default:
		if entry.StoryID == nil {
			entry.StoryID = storyID
		}
		entry.ResourceType = kind
		entry.RecordFailure(cause, r.now, uc.policy.Retry)
	}

	if err := uc.ledger.Save(ctx, entry); err != nil {
		l.Error("Failed to save ledger row, deletion failure not recorded", err)
		return
	}
	if entry.Stuck(uc.policy.Retry) {
		l.Warn("Media deletion reached the attempt ceiling", zap.Int("attempts", entry.Attempts))
		return
	}
	l.Warn("Media deletion failed, scheduled for retry",
		zap.Int("attempts", entry.Attempts),
		zap.Time("next_attempt_at", entry.NextAttemptAt),
	)
}

func (uc *ReclaimUseCase) removable(ctx context.Context, r *run, expired []*story.Story) ([]*story.Story, error) {
	if !uc.policy.Strict {
		return expired, nil
	}

	var all []string
	for _, s := range expired {
		all = append(all, s.PublicIDs()...)
	}
	pending, err := uc.ledger.PendingPublicIDs(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("check pending deletions: %w", err)
	}
	blocked := make(map[string]struct{}, len(pending)+len(r.failed))
	for _, id := range pending {
		blocked[id] = struct{}{}
	}
	for id := range r.failed {
		blocked[id] = struct{}{}
	}

	out := make([]*story.Story, 0, len(expired))
	for _, s := range expired {
		n := 0
		for _, id := range s.PublicIDs() {
			if _, ok := blocked[id]; ok {
				n++
			}
		}
		if n > 0 {
			r.report.Retained++
			uc.logger.Info("Keeping expired story until its media is deleted",
				zap.String("story_id", s.ID.String()),
				zap.Int("blocked_media", n),
			)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (uc *ReclaimUseCase) remove(ctx context.Context, r *run, stories []*story.Story) error {
	if len(stories) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}

	if _, err := uc.viewRepo.DeleteByStoryIDs(ctx, ids); err != nil {
		return fmt.Errorf("delete story views: %w", err)
	}
	n, err := uc.storyRepo.DeleteByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("delete stories: %w", err)
	}
	r.report.Removed = n

	for _, s := range stories {
		evt := story.Event{Type: story.EventReclaimed, StoryID: s.ID, OwnerID: s.OwnerID, OccurredAt: r.now}
		if err := uc.publisher.Publish(ctx, evt); err != nil {
			uc.logger.Error("Failed to publish Kafka 'story.reclaimed' event", err, zap.String("story_id", s.ID.String()))
		}
	}
	return nil
}
