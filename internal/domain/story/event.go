package story

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreated   EventType = "story.created"
	EventViewed    EventType = "story.viewed"
	EventReclaimed EventType = "story.reclaimed"
)

// Event is published on the story events topic.
type Event struct {
	Type       EventType  `json:"event_type"`
	StoryID    uuid.UUID  `json:"story_id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	ViewerID   *uuid.UUID `json:"viewer_id,omitempty"`
	SlideIndex *int       `json:"slide_index,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
