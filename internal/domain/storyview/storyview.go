package storyview

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoryView records that a viewer opened a story. One row per (story, viewer).
type StoryView struct {
	ID         uuid.UUID `json:"_id"`
	StoryID    uuid.UUID `json:"story"`
	ViewerID   uuid.UUID `json:"viewer"`
	ViewedAt   time.Time `json:"viewedAt"`
	SlideIndex *int      `json:"slideIndex"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Repository interface {
	// Upsert keeps ViewedAt from the first view and overwrites SlideIndex.
	Upsert(ctx context.Context, storyID, viewerID uuid.UUID, slideIndex *int, now time.Time) (*StoryView, error)
	ExistsForViewer(ctx context.Context, storyIDs []uuid.UUID, viewerID uuid.UUID) (bool, error)
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]*StoryView, error)
	DeleteByStoryIDs(ctx context.Context, storyIDs []uuid.UUID) (int64, error)
}
