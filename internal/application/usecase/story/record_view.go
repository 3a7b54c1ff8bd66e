package story

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

type RecordViewUseCase struct {
	storyRepo story.Repository
	viewRepo  storyview.Repository
	publisher service.EventPublisher
	clock     clock.Clock
	logger    logger.Logger
}

func NewRecordViewUseCase(r story.Repository, v storyview.Repository, p service.EventPublisher, clk clock.Clock, log logger.Logger) *RecordViewUseCase {
	return &RecordViewUseCase{storyRepo: r, viewRepo: v, publisher: p, clock: clk, logger: log}
}

type RecordViewInput struct {
	// RawStoryID is the identifier as received; a malformed one is reported
	// as not found.
	RawStoryID string
	ViewerID   uuid.UUID
	SlideIndex *int
}

type RecordViewOutput struct {
	View *storyview.StoryView
}

func (uc *RecordViewUseCase) Execute(ctx context.Context, input RecordViewInput) (*RecordViewOutput, error) {
	ctx, span := tracer.Start(ctx, "RecordView")
	defer span.End()

	storyID, err := uuid.Parse(input.RawStoryID)
	if err != nil {
		return nil, apperror.NewNotFound("story", input.RawStoryID)
	}
	if input.SlideIndex != nil && *input.SlideIndex < 0 {
		return nil, apperror.NewInvalidInput("slideIndex must not be negative", nil)
	}

	s, err := uc.storyRepo.FindByID(ctx, storyID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	view, err := uc.viewRepo.Upsert(ctx, s.ID, input.ViewerID, input.SlideIndex, now)
	if err != nil {
		return nil, err
	}

	go func() {
		viewer := input.ViewerID
		evt := story.Event{
			Type:       story.EventViewed,
			StoryID:    s.ID,
			OwnerID:    s.OwnerID,
			ViewerID:   &viewer,
			SlideIndex: input.SlideIndex,
			OccurredAt: now,
		}
		if err := uc.publisher.Publish(context.Background(), evt); err != nil {
			uc.logger.Error("Failed to publish Kafka 'story.viewed' event", err, zap.String("story_id", s.ID.String()))
		}
	}()

	return &RecordViewOutput{View: view}, nil
}
