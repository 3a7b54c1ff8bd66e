package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/testutil/memstore"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

func TestDeliverStoryEvent(t *testing.T) {
	owner, viewer := uuid.New(), uuid.New()
	n := memstore.NewNotifier(owner)
	uc := NewDeliverStoryEventUseCase(n, logger.NewNop())
	storyID := uuid.New()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := 2

	require.NoError(t, uc.Execute(context.Background(), story.Event{Type: story.EventViewed, StoryID: storyID, OwnerID: owner, ViewerID: &viewer, SlideIndex: &idx, OccurredAt: at}))
	require.NoError(t, uc.Execute(context.Background(), story.Event{Type: story.EventViewed, StoryID: storyID, OwnerID: owner, ViewerID: &owner, OccurredAt: at}))
	require.NoError(t, uc.Execute(context.Background(), story.Event{Type: story.EventCreated, StoryID: storyID, OwnerID: owner}))
	require.NoError(t, uc.Execute(context.Background(), story.Event{Type: story.EventReclaimed, StoryID: storyID, OwnerID: owner}))
	require.NoError(t, uc.Execute(context.Background(), story.Event{Type: "story.unknown", StoryID: storyID, OwnerID: owner}))

	got := n.Delivered()
	require.Len(t, got, 2)
	assert.Equal(t, LiveEventStoryViewed, got[0].Event)
	assert.Equal(t, StoryViewedPayload{StoryID: storyID, ViewerID: viewer, SlideIndex: &idx, ViewedAt: at}, got[0].Payload)
	assert.Equal(t, LiveEventStoryExpired, got[1].Event)
}

func TestDeliverStoryEventOfflineOwner(t *testing.T) {
	n := memstore.NewNotifier()
	uc := NewDeliverStoryEventUseCase(n, logger.NewNop())
	viewer := uuid.New()

	err := uc.Execute(context.Background(), story.Event{Type: story.EventViewed, StoryID: uuid.New(), OwnerID: uuid.New(), ViewerID: &viewer})
	assert.NoError(t, err)
	assert.Empty(t, n.Delivered())
}
