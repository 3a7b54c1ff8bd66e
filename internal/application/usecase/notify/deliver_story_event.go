package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

const (
	LiveEventStoryViewed  = "story:viewed"
	LiveEventStoryExpired = "story:expired"
)

type StoryViewedPayload struct {
	StoryID    uuid.UUID `json:"storyId"`
	ViewerID   uuid.UUID `json:"viewerId"`
	SlideIndex *int      `json:"slideIndex,omitempty"`
	ViewedAt   time.Time `json:"viewedAt"`
}

type StoryExpiredPayload struct {
	StoryID uuid.UUID `json:"storyId"`
}

// DeliverStoryEventUseCase turns story events into live messages for the
// users connected to this process.
type DeliverStoryEventUseCase struct {
	notifier service.Notifier
	logger   logger.Logger
}

func NewDeliverStoryEventUseCase(n service.Notifier, log logger.Logger) *DeliverStoryEventUseCase {
	return &DeliverStoryEventUseCase{notifier: n, logger: log}
}

func (uc *DeliverStoryEventUseCase) Execute(ctx context.Context, evt story.Event) error {
	l := uc.logger.With(zap.String("event_type", string(evt.Type)), zap.String("story_id", evt.StoryID.String()))

	switch evt.Type {
	case story.EventViewed:
		if evt.ViewerID == nil || *evt.ViewerID == evt.OwnerID {
			return nil
		}
		delivered := uc.notifier.Deliver(evt.OwnerID, LiveEventStoryViewed, StoryViewedPayload{
			StoryID:    evt.StoryID,
			ViewerID:   *evt.ViewerID,
			SlideIndex: evt.SlideIndex,
			ViewedAt:   evt.OccurredAt,
		})
		l.Debug("Story view notification", zap.Bool("delivered", delivered))
	case story.EventReclaimed:
		delivered := uc.notifier.Deliver(evt.OwnerID, LiveEventStoryExpired, StoryExpiredPayload{StoryID: evt.StoryID})
		l.Debug("Story expiry notification", zap.Bool("delivered", delivered))
	case story.EventCreated:
	default:
		l.Warn("Unknown story event type, skipping")
	}
	return nil
}
