package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/khoahotran/stories-backend/internal/domain/story"
)

type EventPublisher interface {
	Publish(ctx context.Context, evt story.Event) error
}

// Notifier pushes a live message to a connected user. It reports whether the
// user had an open connection.
type Notifier interface {
	Deliver(userID uuid.UUID, event string, payload any) bool
}
